// Package tools exposes the companion's side capabilities (image, speech,
// and video-message generation) as callable tools for an outer agent loop.
// The generators themselves are external services reached over HTTP; this
// package owns only the narrow invocation surface and the registry.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
)

// Tool is one callable side capability. Invoke takes the tool input (for
// generators, a description of what to produce) and returns an opaque
// reference to the produced artifact, typically a UUID.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

// Registry holds the tools available to the agent loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a nil tool or a duplicate name is an
// error.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the named tool, or false when absent.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// generatorTool invokes an external generation service: it posts the
// prompt as JSON and expects the artifact reference back.
type generatorTool struct {
	name        string
	description string
	endpoint    string
	client      *http.Client
	log         *slog.Logger
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Voice  string `json:"voice,omitempty"`
}

type generateResponse struct {
	ID string `json:"id"`
}

func (t *generatorTool) Name() string        { return t.name }
func (t *generatorTool) Description() string { return t.description }

func (t *generatorTool) Invoke(ctx context.Context, input string) (string, error) {
	return t.post(ctx, generateRequest{Prompt: input})
}

func (t *generatorTool) post(ctx context.Context, reqBody generateRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s request: %w", t.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("invalid %s endpoint: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s invocation failed: %w", t.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%s returned status %d: %s", t.name, resp.StatusCode, body)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", t.name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%s returned empty artifact reference", t.name)
	}

	t.log.DebugContext(ctx, "Tool produced artifact", "tool", t.name, "artifact_id", out.ID)
	return out.ID, nil
}

// NewImageTool returns the selfie/image generation tool.
func NewImageTool(endpoint string, client *http.Client, log *slog.Logger) Tool {
	return &generatorTool{
		name:        "GenerateImage",
		description: "Generates an image from a description and returns its UUID.",
		endpoint:    endpoint,
		client:      client,
		log:         log.With("component", "tools"),
	}
}

// NewSpeechTool returns the speech synthesis tool.
func NewSpeechTool(endpoint string, client *http.Client, log *slog.Logger) Tool {
	return &generatorTool{
		name:        "GenerateSpeech",
		description: "Generates a spoken version of a text and returns its UUID.",
		endpoint:    endpoint,
		client:      client,
		log:         log.With("component", "tools"),
	}
}

// videoTool generates a video message, optionally voicing the text through
// the speech tool first.
type videoTool struct {
	generatorTool
	speech Tool
}

func (t *videoTool) Invoke(ctx context.Context, input string) (string, error) {
	req := generateRequest{Prompt: input}

	if t.speech != nil {
		voiceID, err := t.speech.Invoke(ctx, input)
		if err != nil {
			return "", fmt.Errorf("speech synthesis for video message failed: %w", err)
		}
		req.Voice = voiceID
	}

	return t.post(ctx, req)
}

// NewVideoMessageTool returns the video-message tool. speech may be nil,
// in which case the video is generated without a synthesized voice track.
func NewVideoMessageTool(endpoint string, speech Tool, client *http.Client, log *slog.Logger) Tool {
	return &videoTool{
		generatorTool: generatorTool{
			name:        "VideoMessage",
			description: "Generates a video message from a text and returns its UUID.",
			endpoint:    endpoint,
			client:      client,
			log:         log.With("component", "tools"),
		},
		speech: speech,
	}
}
