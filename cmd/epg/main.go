package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-epg/config"
	"go-epg/debug"
	"go-epg/midi"
	"go-epg/pattern"
	"go-epg/project"
	"go-epg/sequencer"
	"go-epg/theme"
	"go-epg/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file (default ~/.config/go-epg/config.yaml)")
	projectName := flag.String("project", "", "project to load and auto-save into")
	outPort := flag.String("out", "", "MIDI output port")
	var inPorts stringList
	flag.Var(&inPorts, "in", "MIDI input port for remote control (repeatable, substring match)")
	logLevel := flag.String("log", "", "enable the debug log at this level (debug, info, warn, error)")
	var actions projectActions
	flag.BoolVar(&actions.list, "list", false, "list projects and their saves, then exit")
	flag.StringVar(&actions.rename, "rename", "", "rename a save of the project: FILE=NAME")
	flag.StringVar(&actions.delete, "delete", "", "delete a save file of the project")
	flag.BoolVar(&actions.deleteProject, "delete-project", false, "delete the project and all its saves")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *projectName != "" {
		cfg.Project.Name = *projectName
	}
	if *outPort != "" {
		cfg.Output.PortName = *outPort
	}
	for _, name := range inPorts {
		cfg.AddInput(config.InputConfig{PortName: name, AutoConnect: true})
	}
	if *logLevel != "" {
		cfg.Log.Enabled = true
		cfg.Log.Level = *logLevel
	}

	if cfg.Log.Enabled {
		path := cfg.Log.Path
		if path == "" {
			path = debug.DefaultPath()
		}
		if err := debug.Enable(path, cfg.Log.Level); err != nil {
			return fmt.Errorf("enable log: %w", err)
		}
		defer debug.Disable()
	}
	logger := debug.Logger("main")

	var palette *theme.Palette
	if cfg.UI.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.UI.Palette); err != nil {
			logger.Warn("palette not loaded, using built-in", "err", err)
		}
	}

	output := midi.NewOutput(cfg.Output.PortName)
	defer output.Close()

	session := sequencer.NewSession(sequencer.Options{
		Name:       cfg.Project.Name,
		Timing:     pattern.Timing{PPQN: cfg.Timing.PPQN, StepsPerBeat: cfg.Timing.StepsPerBeat},
		BPM:        cfg.Timing.BPM,
		Pitch:      cfg.Output.Pitch,
		Sender:     output,
		OutputPort: cfg.Output.PortName,
	})

	store, err := project.DefaultStore()
	if err != nil {
		return err
	}
	if actions.any() {
		return manageProjects(os.Stdout, store, cfg.Project.Name, actions)
	}
	switch p, err := store.Latest(cfg.Project.Name); {
	case err == nil:
		session.Restore(p)
	case errors.Is(err, project.ErrNoSaves):
		session.CreatePattern(pattern.Spec{Steps: 16, Pulses: 4})
	default:
		return fmt.Errorf("load project %s: %w", cfg.Project.Name, err)
	}

	manager := sequencer.NewManager(session, store, cfg.Project.AutoSaveInterval)
	watcher := midi.NewPortWatcher(cfg.AutoConnectInputs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := manager.Run(ctx); err != nil {
			logger.Error("manager stopped", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		connectInputs(watcher, manager)
	}()

	m := tui.NewModel(manager, watcher, theme.New(palette))
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	wg.Wait()
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// connectInputs opens a listener for every watched port that appears and
// closes it again when the port goes away.
func connectInputs(watcher *midi.PortWatcher, manager *sequencer.Manager) {
	logger := debug.Logger("ports")
	listeners := make(map[string]*midi.Listener)
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()

	for event := range watcher.Events() {
		switch event.Type {
		case midi.PortConnected:
			l, err := midi.NewListener(event.Name, event.In, manager.Input())
			if err != nil {
				logger.Error("listen failed", "port", event.Name, "err", err)
				continue
			}
			listeners[event.Name] = l
			logger.Info("input connected", "port", event.Name)
		case midi.PortDisconnected:
			if l, ok := listeners[event.Name]; ok {
				if n := l.Dropped(); n > 0 {
					logger.Warn("messages dropped", "port", event.Name, "count", n)
				}
				l.Close()
				delete(listeners, event.Name)
			}
			logger.Info("input disconnected", "port", event.Name)
		}
	}
}

// stringList collects a repeatable flag
type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
