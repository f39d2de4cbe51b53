package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnv, filepath.Join(dir, "conf"))
	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.DisableASLR || c.MaxSteps != 0 || !c.ShouldForwardSignals() || c.Color != "" {
		t.Fatalf("expected empty configuration; but was %+v", c)
	}
	if _, err := os.Stat(filepath.Join(dir, "conf", configFile)); err != nil {
		t.Fatalf("default configuration not written: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	data := "disable-aslr: true\nforward-signals: false\nmax-steps: 1000\ncolor: never\nchanged-color: cyan\nworking-dir: /tmp\n"
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !c.DisableASLR || c.ShouldForwardSignals() || c.MaxSteps != 1000 || c.Color != "never" || c.ChangedColor != "cyan" || c.WorkingDir != "/tmp" {
		t.Fatalf("unexpected configuration %+v", c)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	if err := os.WriteFile(filepath.Join(dir, configFile), []byte("max-steps: many\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSaveConfig(t *testing.T) {
	t.Setenv(configDirEnv, t.TempDir())
	no := false
	if err := SaveConfig(&Config{MaxSteps: 7, ForwardSignals: &no}); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxSteps != 7 || c.ShouldForwardSignals() {
		t.Fatalf("unexpected configuration %+v", c)
	}
}
