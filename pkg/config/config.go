package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	configDirEnv string = "TRACE86_CONFIG_DIR"
	configDir    string = ".trace86"
	configFile   string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// DisableASLR launches targets with address space randomization
	// turned off, so that traces of the same program can be compared.
	DisableASLR bool `yaml:"disable-aslr"`
	// ForwardSignals delivers the signals received by the target back to
	// it. Defaults to true when unset.
	ForwardSignals *bool `yaml:"forward-signals,omitempty"`
	// MaxSteps bounds the number of instructions traced, 0 means no bound.
	MaxSteps uint64 `yaml:"max-steps"`
	// WorkingDir is the working directory of the target.
	WorkingDir string `yaml:"working-dir"`

	// Color is one of auto, always or never.
	Color string `yaml:"color"`
	// ChangedColor is the name of the color used to highlight registers
	// that changed since the previous row.
	ChangedColor string `yaml:"changed-color"`
}

// ShouldForwardSignals reports whether signals are forwarded to the target.
func (c *Config) ShouldForwardSignals() bool {
	return c.ForwardSignals == nil || *c.ForwardSignals
}

// LoadConfig attempts to populate a Config object from the config.yml
// file, creating a default one first if it does not exist. A missing
// config directory is not an error.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
		return &Config{}, nil
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, nil
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		if err := createDefaultConfig(fullConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v.\n", err)
			return &Config{}, nil
		}
		if f, err = os.Open(fullConfigFile); err != nil {
			return &Config{}, nil
		}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config file %s: %v", fullConfigFile, err)
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	if err := createConfigPath(); err != nil {
		return err
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	err = writeDefaultConfig(f)
	if err != nil {
		return fmt.Errorf("unable to write default configuration: %v", err)
	}
	return nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for trace86.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Launch targets with address space randomization disabled.
# disable-aslr: true

# Deliver signals received by the target back to it (default true).
# forward-signals: false

# Stop tracing after this many instructions, 0 means no limit.
# max-steps: 0

# Working directory of the traced program.
# working-dir: ""

# Colored output of "trace86 print": auto, always or never.
# color: auto

# Color of registers that changed since the previous row
# (red, green, yellow, blue, magenta, cyan).
# changed-color: yellow
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
// The directory is $TRACE86_CONFIG_DIR if set, ~/.trace86 otherwise.
func GetConfigFilePath(file string) (string, error) {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return filepath.Join(dir, file), nil
	}
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
