// Package persona_test tests the persona package
package persona_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mveloso/companion-bot/internal/config"
	"github.com/mveloso/companion-bot/internal/persona"
)

func validCompanionConfig() config.CompanionConfig {
	return config.CompanionConfig{
		Name:  "Alice",
		Title: "resident storyteller",
		LLM:   "gemini-2.0-flash",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.CompanionConfig)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(*config.CompanionConfig) {},
		},
		{
			name:    "missing name",
			mutate:  func(c *config.CompanionConfig) { c.Name = "" },
			wantErr: true,
		},
		{
			name:    "whitespace-only title",
			mutate:  func(c *config.CompanionConfig) { c.Title = "   " },
			wantErr: true,
		},
		{
			name:    "missing llm",
			mutate:  func(c *config.CompanionConfig) { c.LLM = "" },
			wantErr: true,
		},
		{
			name:   "image url is optional",
			mutate: func(c *config.CompanionConfig) { c.ImageURL = "" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validCompanionConfig()
			tc.mutate(&cfg)

			p, err := persona.New(cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, persona.ErrConfig) {
					t.Errorf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Loaded() {
				t.Error("fresh persona should not report loaded")
			}
		})
	}
}

func writeBackstoryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backstory.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write backstory file: %v", err)
	}
	return path
}

func TestLoadBackstory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		content       string
		wantChars     int
		wantPreamble  string
		wantSeedChat  string
		wantBackstory string
		wantErr       bool
	}{
		{
			name:          "valid resource",
			content:       "PRE###ENDPREAMBLE###SEED###ENDSEEDCHAT###STORY",
			wantChars:     7,
			wantPreamble:  "PRE",
			wantSeedChat:  "SEED",
			wantBackstory: "STORY",
		},
		{
			name:          "empty sections",
			content:       "###ENDPREAMBLE######ENDSEEDCHAT###",
			wantChars:     0,
			wantPreamble:  "",
			wantSeedChat:  "",
			wantBackstory: "",
		},
		{
			name:          "multibyte runes counted once",
			content:       "héllo###ENDPREAMBLE###wörld###ENDSEEDCHAT###tail",
			wantChars:     10,
			wantPreamble:  "héllo",
			wantSeedChat:  "wörld",
			wantBackstory: "tail",
		},
		{
			name:    "missing preamble delimiter",
			content: "PRE SEED###ENDSEEDCHAT###STORY",
			wantErr: true,
		},
		{
			name:    "missing seed chat delimiter",
			content: "PRE###ENDPREAMBLE###SEED STORY",
			wantErr: true,
		},
		{
			name:    "duplicate preamble delimiter",
			content: "PRE###ENDPREAMBLE###MID###ENDPREAMBLE###SEED###ENDSEEDCHAT###STORY",
			wantErr: true,
		},
		{
			name:    "delimiters out of order",
			content: "SEED###ENDSEEDCHAT###PRE###ENDPREAMBLE###STORY",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p, err := persona.New(validCompanionConfig())
			if err != nil {
				t.Fatalf("failed to create persona: %v", err)
			}

			path := writeBackstoryFile(t, tc.content)
			chars, err := p.LoadBackstory(path)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, persona.ErrMalformedResource) {
					t.Errorf("expected ErrMalformedResource, got %v", err)
				}
				if p.Loaded() {
					t.Error("persona should not report loaded after failed parse")
				}
				if p.Preamble() != "" || p.SeedChat() != "" || p.Backstory() != "" {
					t.Error("persona state should be untouched after failed parse")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if chars != tc.wantChars {
				t.Errorf("expected %d preamble+seed chars, got %d", tc.wantChars, chars)
			}
			if got := p.Preamble(); got != tc.wantPreamble {
				t.Errorf("expected preamble %q, got %q", tc.wantPreamble, got)
			}
			if got := p.SeedChat(); got != tc.wantSeedChat {
				t.Errorf("expected seed chat %q, got %q", tc.wantSeedChat, got)
			}
			if got := p.Backstory(); got != tc.wantBackstory {
				t.Errorf("expected backstory %q, got %q", tc.wantBackstory, got)
			}
			if !p.Loaded() {
				t.Error("persona should report loaded after successful parse")
			}
		})
	}
}

func TestLoadBackstoryMissingFile(t *testing.T) {
	t.Parallel()

	p, err := persona.New(validCompanionConfig())
	if err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	if _, err := p.LoadBackstory(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if p.Loaded() {
		t.Error("persona should not report loaded after read failure")
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	p, err := persona.New(validCompanionConfig())
	if err != nil {
		t.Fatalf("failed to create persona: %v", err)
	}

	want := "Companion: Alice, resident storyteller (using gemini-2.0-flash)"
	if got := p.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
