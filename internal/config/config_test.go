package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{
		DatabaseURL:  "mongodb://localhost:27017",
		DatabaseName: "threadkeep",
		LogFormat:    "text",
		LogLevel:     "debug",
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DatabaseURL != cfg.DatabaseURL || got.DatabaseName != cfg.DatabaseName {
		t.Fatalf("round trip: %+v", got)
	}
	if got.LogFormat != "text" || got.LogLevel != "debug" {
		t.Fatalf("logging fields: %+v", got)
	}
}

func TestSaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := &Config{DatabaseURL: "/var/lib/threadkeep.sqlite", AuditDir: "/tmp/audit"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DatabaseURL != cfg.DatabaseURL || got.AuditDir != cfg.AuditDir {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing url", Config{}, "missing database_url"},
		{"bad format", Config{DatabaseURL: "x", LogFormat: "xml"}, "invalid log_format"},
		{"bad level", Config{DatabaseURL: "x", LogLevel: "loud"}, "invalid log_level"},
		{"bad template", Config{DatabaseURL: "x", DebugURLTemplate: "no-verb"}, "debug_url_template"},
		{"ok", Config{DatabaseURL: "x", DebugURLTemplate: "https://x/%s"}, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate=%v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, &Config{DatabaseURL: "/file.sqlite", DatabaseName: "filedb"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("THREADKEEP_DB_URL", "mongodb://env-host:27017")
	t.Setenv("THREADKEEP_DB_NAME", "envdb")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DatabaseURL != "mongodb://env-host:27017" {
		t.Fatalf("DatabaseURL=%q, want env override", got.DatabaseURL)
	}
	if got.DatabaseName != "envdb" {
		t.Fatalf("DatabaseName=%q, want env override", got.DatabaseName)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, &Config{}); err == nil {
		t.Fatalf("Save accepted invalid config")
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("Save accepted nil config")
	}
}
