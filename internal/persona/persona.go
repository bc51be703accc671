// Package persona loads and holds a companion's static identity: name,
// title, model identifier, and the delimited backstory resource that feeds
// the prompt template.
package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mveloso/companion-bot/internal/config"
)

// Delimiters of the backstory resource format. Each must appear exactly
// once, in this order: preamble, then seed chat, then backstory.
const (
	EndPreambleDelimiter = "###ENDPREAMBLE###"
	EndSeedChatDelimiter = "###ENDSEEDCHAT###"
)

var (
	// ErrConfig indicates a missing or invalid persona configuration field.
	// Fatal at construction.
	ErrConfig = errors.New("invalid companion configuration")

	// ErrMalformedResource indicates a backstory resource missing a
	// delimiter. Fatal at load.
	ErrMalformedResource = errors.New("malformed backstory resource")
)

// Persona holds a companion's static identity and backstory. Identity
// fields come from the configuration record; the backstory fields are
// populated once by LoadBackstory and are immutable afterwards.
type Persona struct {
	Name     string
	Title    string
	ImageURL string
	LLM      string

	preamble  string
	seedChat  string
	backstory string

	loaded bool
}

// New constructs a Persona from the configuration record. It fails with
// ErrConfig if any required identity field is absent.
func New(cfg config.CompanionConfig) (*Persona, error) {
	for field, value := range map[string]string{
		"name":  cfg.Name,
		"title": cfg.Title,
		"llm":   cfg.LLM,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrConfig, field)
		}
	}

	return &Persona{
		Name:     cfg.Name,
		Title:    cfg.Title,
		ImageURL: cfg.ImageURL,
		LLM:      cfg.LLM,
	}, nil
}

// LoadBackstory reads the backstory resource at path, splits it on the two
// delimiters into preamble, seed chat, and backstory, and compiles the
// prompt template. It returns the combined character length of preamble and
// seed chat, used by callers for diagnostics and context budgeting.
//
// It fails with ErrMalformedResource if either delimiter is missing or
// duplicated, leaving the persona state untouched.
func (p *Persona) LoadBackstory(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read backstory resource %s: %w", path, err)
	}

	preamble, seedChat, backstory, err := splitBackstory(string(data))
	if err != nil {
		return 0, err
	}

	p.preamble = preamble
	p.seedChat = seedChat
	p.backstory = backstory
	p.loaded = true

	compileTemplate()

	return utf8.RuneCountInString(preamble) + utf8.RuneCountInString(seedChat), nil
}

func splitBackstory(text string) (preamble, seedChat, backstory string, err error) {
	if strings.Count(text, EndPreambleDelimiter) != 1 {
		return "", "", "", fmt.Errorf("%w: expected exactly one %s delimiter", ErrMalformedResource, EndPreambleDelimiter)
	}
	if strings.Count(text, EndSeedChatDelimiter) != 1 {
		return "", "", "", fmt.Errorf("%w: expected exactly one %s delimiter", ErrMalformedResource, EndSeedChatDelimiter)
	}

	preamble, rest, _ := strings.Cut(text, EndPreambleDelimiter)
	seedChat, backstory, found := strings.Cut(rest, EndSeedChatDelimiter)
	if !found {
		// Delimiters out of order: the seed-chat delimiter precedes the
		// preamble delimiter in the source text.
		return "", "", "", fmt.Errorf("%w: %s must precede %s", ErrMalformedResource, EndPreambleDelimiter, EndSeedChatDelimiter)
	}

	return preamble, seedChat, backstory, nil
}

// Preamble returns the persona-description text shown to the model before
// backstory and history.
func (p *Persona) Preamble() string { return p.preamble }

// SeedChat returns the bootstrap dialogue bundled with the persona. It is
// parsed and retained but not used in the turn-execution path.
func (p *Persona) SeedChat() string { return p.seedChat }

// Backstory returns the persona's backstory text, used as static relevant
// context when no semantic retrieval result is available.
func (p *Persona) Backstory() string { return p.backstory }

// Loaded reports whether LoadBackstory has completed successfully.
func (p *Persona) Loaded() bool { return p.loaded }

// String renders a human-readable one-line summary of the companion.
func (p *Persona) String() string {
	return fmt.Sprintf("Companion: %s, %s (using %s)", p.Name, p.Title, p.LLM)
}
