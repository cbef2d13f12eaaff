package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := int64(5<<20), cfg.MaxUploadSize(); expected != actual {
		t.Errorf("Expected %d, got %d", expected, actual)
	}
	if expected, actual := 180*time.Second, cfg.UploadTimeout; expected != actual {
		t.Errorf("Expected %s, got %s", expected, actual)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
backend: openai
model: gpt-4o-mini
prompt: Transcribe the handwriting.
uploadTimeout: 90s
historyDB: ./history.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "openai", cfg.Backend; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
	if expected, actual := 90*time.Second, cfg.UploadTimeout; expected != actual {
		t.Errorf("Expected %s, got %s", expected, actual)
	}
	// Untouched keys keep their defaults
	if expected, actual := 5, cfg.MaxUploadMB; expected != actual {
		t.Errorf("Expected %d, got %d", expected, actual)
	}
	if expected, actual := "OPENAI_API_KEY", cfg.APIKeyEnv(); expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.yaml", "maxUploadMB: 0\n")); err == nil {
		t.Error("Expected a validation error")
	}
	if _, err := Load(writeFile(t, "bad.yaml", "backend: [\n")); err == nil {
		t.Error("Expected a parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected a missing file error")
	}
}

func TestLoadAPIKey(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gsk_env")
		cfg := Default()
		if err := cfg.LoadAPIKey(filepath.Join(t.TempDir(), "none.env")); err != nil {
			t.Fatal(err)
		}
		if expected, actual := "gsk_env", cfg.APIKey; expected != actual {
			t.Errorf("Expected %q, got %q", expected, actual)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		cfg := Default()
		err := cfg.LoadAPIKey(filepath.Join(t.TempDir(), "none.env"))
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("Expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("from dotenv", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		os.Unsetenv("OPENAI_API_KEY")
		path := writeFile(t, ".env", "OPENAI_API_KEY=sk-dotenv\n")
		cfg := Default()
		cfg.Backend = "openai"
		if err := cfg.LoadAPIKey(path); err != nil {
			t.Fatal(err)
		}
		if expected, actual := "sk-dotenv", cfg.APIKey; expected != actual {
			t.Errorf("Expected %q, got %q", expected, actual)
		}
	})

	t.Run("llama needs no key", func(t *testing.T) {
		cfg := Default()
		cfg.Backend = "llama"
		if err := cfg.LoadAPIKey(filepath.Join(t.TempDir(), "none.env")); err != nil {
			t.Errorf("Unexpected error %s", err)
		}
	})
}
