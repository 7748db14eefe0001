package main

import (
	"fmt"
	"io"
	"strings"

	"go-epg/project"
)

// projectActions are the one-shot store commands; any of them makes epg
// exit without starting the sequencer.
type projectActions struct {
	list          bool
	rename        string // FILE=NAME
	delete        string // FILE
	deleteProject bool
}

func (a projectActions) any() bool {
	return a.list || a.rename != "" || a.delete != "" || a.deleteProject
}

// manageProjects runs the requested actions against the current project
func manageProjects(w io.Writer, store *project.Store, name string, a projectActions) error {
	if a.rename != "" {
		file, label, ok := strings.Cut(a.rename, "=")
		if !ok || file == "" {
			return fmt.Errorf("rename wants FILE=NAME, got %q", a.rename)
		}
		renamed, err := store.RenameSave(name, file, label)
		if err != nil {
			return fmt.Errorf("rename %s: %w", file, err)
		}
		fmt.Fprintf(w, "%s -> %s\n", file, renamed)
	}

	if a.delete != "" {
		if err := store.DeleteSave(name, a.delete); err != nil {
			return fmt.Errorf("delete %s: %w", a.delete, err)
		}
		fmt.Fprintf(w, "deleted %s\n", a.delete)
	}

	if a.deleteProject {
		if err := store.DeleteProject(name); err != nil {
			return fmt.Errorf("delete project %s: %w", name, err)
		}
		fmt.Fprintf(w, "deleted project %s\n", name)
	}

	if a.list {
		return listProjects(w, store)
	}
	return nil
}

func listProjects(w io.Writer, store *project.Store) error {
	names, err := store.ListProjects()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "no projects")
		return nil
	}
	for _, name := range names {
		saves, err := store.ListSaves(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (%d saves)\n", name, len(saves))
		for _, s := range saves {
			label := s.Name
			if label == "" {
				label = "-"
			}
			fmt.Fprintf(w, "  %s  %s  %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), label, s.Filename)
		}
	}
	return nil
}
