// Package project stores timestamped JSON snapshots of a session.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-epg/config"
	"go-epg/graph"
	"go-epg/pattern"
	"go-epg/remote"
)

// Version of the snapshot format written by Save
const Version = 1

const timestampLayout = "2006-01-02_15-04-05"

// ErrNoSaves is returned when a project has nothing to load
var ErrNoSaves = errors.New("project: no saves")

// NodeData is the snapshot of one graph node
type NodeData struct {
	ID     string         `json:"id"`
	Kind   graph.Kind     `json:"kind"`
	Name   string         `json:"name,omitempty"`
	Params map[string]int `json:"params,omitempty"`
}

// Project is everything needed to rebuild a session
type Project struct {
	Version     int                `json:"version"`
	Name        string             `json:"name"`
	BPM         int                `json:"bpm"`
	Patterns    []pattern.Data     `json:"patterns"`
	Remote      []remote.Data      `json:"remote"`
	Nodes       []NodeData         `json:"nodes"`
	Connections []graph.Connection `json:"connections"`
}

// SaveInfo represents a saved project file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Store reads and writes projects under Dir, one folder per project
type Store struct {
	Dir  string
	Now  func() time.Time
	Keep int // unnamed saves kept per project after Save, 0 keeps all
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// DefaultStore is rooted at ~/.config/go-epg/projects
func DefaultStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	s := NewStore(filepath.Join(dir, "projects"))
	s.Keep = 50
	return s, nil
}

// ProjectDir returns the path to a specific project
func (s *Store) ProjectDir(name string) string {
	return filepath.Join(s.Dir, name)
}

// ListProjects returns all project folder names
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first
func (s *Store) ListSaves(name string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.ProjectDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parseFilename(entry.Name()); ok {
			saves = append(saves, info)
		}
	}

	sort.SliceStable(saves, func(i, j int) bool {
		if saves[i].Timestamp.Equal(saves[j].Timestamp) {
			return saves[i].Filename > saves[j].Filename
		}
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseFilename accepts 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
func parseFilename(filename string) (SaveInfo, bool) {
	if !strings.HasSuffix(filename, ".json") {
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(filename, ".json")
	if len(base) < len(timestampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}
	info := SaveInfo{Filename: filename, Timestamp: ts}
	rest := base[len(timestampLayout):]
	if len(rest) > 1 && rest[0] == '_' {
		info.Name = rest[1:]
	}
	return info, true
}

// Save writes p as a new timestamped file and returns its filename
func (s *Store) Save(p *Project) (string, error) {
	if p.Name == "" {
		p.Name = "untitled"
	}
	p.Version = Version

	dir := s.ProjectDir(p.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode project: %w", err)
	}

	filename := s.Now().Format(timestampLayout) + ".json"
	tmp := filepath.Join(dir, "."+filename+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write project: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, filename)); err != nil {
		return "", fmt.Errorf("write project: %w", err)
	}
	if s.Keep > 0 {
		if _, err := s.Prune(p.Name, s.Keep); err != nil {
			return filename, fmt.Errorf("prune %s: %w", p.Name, err)
		}
	}
	return filename, nil
}

// Load reads a specific save, or the most recent one if filename is empty
func (s *Store) Load(name, filename string) (*Project, error) {
	if filename == "" {
		saves, err := s.ListSaves(name)
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, fmt.Errorf("%w in project %s", ErrNoSaves, name)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(s.ProjectDir(name), filename))
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if p.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d", filename, p.Version)
	}
	p.Name = name
	return &p, nil
}

// Latest loads the most recent save of a project
func (s *Store) Latest(name string) (*Project, error) {
	return s.Load(name, "")
}

// Prune deletes all but the newest keep unnamed saves. Named saves are kept.
func (s *Store) Prune(name string, keep int) (int, error) {
	saves, err := s.ListSaves(name)
	if err != nil {
		return 0, err
	}
	var errs []error
	removed, unnamed := 0, 0
	for _, save := range saves {
		if save.Name != "" {
			continue
		}
		unnamed++
		if unnamed <= keep {
			continue
		}
		if err := s.DeleteSave(name, save.Filename); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// DeleteSave deletes a specific save file
func (s *Store) DeleteSave(name, filename string) error {
	return os.Remove(filepath.Join(s.ProjectDir(name), filename))
}

// RenameSave changes the name part of a save, keeping its timestamp
func (s *Store) RenameSave(name, oldFilename, newName string) (string, error) {
	info, ok := parseFilename(oldFilename)
	if !ok {
		return "", fmt.Errorf("invalid save filename %q", oldFilename)
	}
	ts := info.Timestamp.Format(timestampLayout)

	newFilename := ts + ".json"
	if newName != "" {
		newFilename = ts + "_" + sanitizeFilename(newName) + ".json"
	}

	dir := s.ProjectDir(name)
	return newFilename, os.Rename(filepath.Join(dir, oldFilename), filepath.Join(dir, newFilename))
}

var unsafeChars = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
)

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	return unsafeChars.Replace(name)
}

// DeleteProject deletes entire project folder
func (s *Store) DeleteProject(name string) error {
	return os.RemoveAll(s.ProjectDir(name))
}
