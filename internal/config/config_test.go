package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/photark")

	if cfg.BaseDir != "/data/photark" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/photark")
	}
	if cfg.LogDir != "/data/photark/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/photark/log")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Database.DataDir != "/data/photark/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/photark/db")
	}
}

func TestManagerRoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/data/photark",
		LogDir:  "/data/photark/log",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: "/data/photark/db",
		},
		Export: ExportConfig{
			BundleRecipient: "age1example",
		},
	}

	m := &Manager{}

	var buf bytes.Buffer
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	decoded, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if decoded.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", decoded.BaseDir, original.BaseDir)
	}
	if decoded.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", decoded.LogDir, original.LogDir)
	}
	if decoded.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", decoded.Database, original.Database)
	}
	if decoded.Export.BundleRecipient != original.Export.BundleRecipient {
		t.Errorf("Export.BundleRecipient = %q, want %q", decoded.Export.BundleRecipient, original.Export.BundleRecipient)
	}
}

func TestManagerReadInvalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("not = [valid")); err == nil {
		t.Error("expected error for invalid toml, got nil")
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photark.toml")
	cfg := NewConfig(filepath.Join(dir, "data"))

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	// Init must refuse to overwrite an existing config.
	if err := Init(path, cfg); err == nil {
		t.Error("expected error when config already exists, got nil")
	}
}

func TestReadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photark.toml")

	content := `base_dir = "/data/photark"
log_dir = "/data/photark/log"

[database]
type = "sqlite"
data_dir = "/data/photark/db"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile failed: %v", err)
	}
	if cfg.BaseDir != "/data/photark" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/photark")
	}
	if cfg.Database.DataDir != "/data/photark/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/photark/db")
	}
}

func TestReadFromFileMissing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
