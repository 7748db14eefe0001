package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TimingConfig sets the transport resolution
type TimingConfig struct {
	PPQN         int `yaml:"ppqn"`
	StepsPerBeat int `yaml:"stepsPerBeat"`
	BPM          int `yaml:"bpm"`
}

// InputConfig is a MIDI input port used as a remote-control source
type InputConfig struct {
	PortName    string `yaml:"portName"`
	AutoConnect bool   `yaml:"autoConnect"`
}

// OutputConfig defines where pattern notes go
type OutputConfig struct {
	PortName string `yaml:"portName,omitempty"`
	Pitch    uint8  `yaml:"pitch"`
}

// ProjectConfig controls auto-save
type ProjectConfig struct {
	Name             string        `yaml:"name"`
	AutoSaveInterval time.Duration `yaml:"autoSaveInterval"`
}

// LogConfig controls the debug log
type LogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Path    string `yaml:"path,omitempty"`
}

// UIConfig controls the terminal view
type UIConfig struct {
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file, built-in palette when empty
}

// Config is the main configuration structure
type Config struct {
	Timing  TimingConfig  `yaml:"timing"`
	Inputs  []InputConfig `yaml:"inputs,omitempty"`
	Output  OutputConfig  `yaml:"output"`
	Project ProjectConfig `yaml:"project"`
	Log     LogConfig     `yaml:"log"`
	UI      UIConfig      `yaml:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Timing: TimingConfig{
			PPQN:         480,
			StepsPerBeat: 4,
			BPM:          120,
		},
		Output: OutputConfig{
			Pitch: 60,
		},
		Project: ProjectConfig{
			Name:             "default",
			AutoSaveInterval: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-epg"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Missing keys keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects timing values the scheduler cannot work with
func (c *Config) Validate() error {
	var errs error
	if c.Timing.PPQN <= 0 {
		errs = errors.Join(errs, errors.New("timing.ppqn must be positive"))
	}
	if c.Timing.StepsPerBeat <= 0 {
		errs = errors.Join(errs, errors.New("timing.stepsPerBeat must be positive"))
	}
	if c.Timing.BPM < 20 || c.Timing.BPM > 300 {
		errs = errors.Join(errs, errors.New("timing.bpm must be within 20-300"))
	}
	if c.Output.Pitch > 127 {
		errs = errors.Join(errs, errors.New("output.pitch must be within 0-127"))
	}
	return errs
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindInput finds an input config by port name
func (c *Config) FindInput(portName string) *InputConfig {
	for i := range c.Inputs {
		if c.Inputs[i].PortName == portName {
			return &c.Inputs[i]
		}
	}
	return nil
}

// AddInput adds or updates an input config
func (c *Config) AddInput(in InputConfig) {
	for i := range c.Inputs {
		if c.Inputs[i].PortName == in.PortName {
			c.Inputs[i] = in
			return
		}
	}
	c.Inputs = append(c.Inputs, in)
}

// AutoConnectInputs returns the port names of inputs with autoConnect enabled
func (c *Config) AutoConnectInputs() []string {
	var result []string
	for _, in := range c.Inputs {
		if in.AutoConnect {
			result = append(result, in.PortName)
		}
	}
	return result
}
