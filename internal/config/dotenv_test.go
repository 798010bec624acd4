package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		raw       string
		key, want string
		ok        bool
	}{
		{"A=one", "A", "one", true},
		{"export B=two", "B", "two", true},
		{`C="three"`, "C", "three", true},
		{"D='four five'", "D", "four five", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no-equals-sign", "", "", false},
		{"=value-without-key", "", "", false},
	}

	for _, tc := range cases {
		key, value, ok := parseDotEnvLine(tc.raw)
		if ok != tc.ok {
			t.Fatalf("parseDotEnvLine(%q) ok=%v, want %v", tc.raw, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if key != tc.key || value != tc.want {
			t.Fatalf("parseDotEnvLine(%q) = (%q, %q), want (%q, %q)", tc.raw, key, value, tc.key, tc.want)
		}
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("KEEP", "already")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KEEP=fromfile\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("KEEP"); got != "already" {
		t.Fatalf("KEEP=%q, want %q", got, "already")
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("loadDotEnv on missing file: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CATALOG_DIR", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("RULES_FILE", "")

	cfg := Load()

	if cfg.CatalogDir != defaultCatalogDir {
		t.Fatalf("CatalogDir=%q, want %q", cfg.CatalogDir, defaultCatalogDir)
	}
	if cfg.DBPath != defaultDBPath {
		t.Fatalf("DBPath=%q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("Port=%q, want %q", cfg.Port, defaultPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_DIR", "/srv/catalogos")
	t.Setenv("DB_PATH", "/srv/orcafrio.db")
	t.Setenv("PORT", "9090")
	t.Setenv("RULES_FILE", "/srv/regras.yaml")

	cfg := Load()

	if cfg.CatalogDir != "/srv/catalogos" || cfg.DBPath != "/srv/orcafrio.db" ||
		cfg.Port != "9090" || cfg.RulesFile != "/srv/regras.yaml" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
