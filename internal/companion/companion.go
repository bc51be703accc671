// Package companion implements the conversational turn executor: it
// records the user's message, gathers recent history and relevant context,
// assembles the prompt, invokes the LLM backend, and persists the reply.
package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mveloso/companion-bot/internal/persona"
	"github.com/mveloso/companion-bot/internal/retriever"
)

// ErrGeneration indicates an LLM backend failure during a turn. The user's
// message is already recorded when this is returned; callers decide whether
// to log-and-continue or propagate.
var ErrGeneration = errors.New("reply generation failed")

// HistoryStore is the append-only conversation log consumed by the
// executor. Ordering is call order. Satisfied by database.Store.
type HistoryStore interface {
	AppendTurn(ctx context.Context, conversationID, content string) error
	RecentHistory(ctx context.Context, conversationID string, limit int) (string, error)
}

// Backend is the LLM invocation surface consumed by the executor.
// Satisfied by gemini.Client.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContextRetriever answers top-K relevance queries for the turn's context.
// Satisfied by *retriever.Retriever.
type ContextRetriever interface {
	Query(ctx context.Context, text string, k int) ([]retriever.Passage, error)
}

// Companion orchestrates conversational turns for one configured persona.
type Companion struct {
	persona   *persona.Persona
	history   HistoryStore
	retriever ContextRetriever
	backend   Backend
	log       *slog.Logger

	historyLimit      int
	generationTimeout time.Duration
}

// New creates a Companion. The retriever may be nil, in which case the
// persona backstory is always used as relevant context. historyLimit is
// the history store's "read latest N" policy; generationTimeout bounds
// each backend invocation.
func New(
	p *persona.Persona,
	history HistoryStore,
	contextRetriever ContextRetriever,
	backend Backend,
	log *slog.Logger,
	historyLimit int,
	generationTimeout time.Duration,
) (*Companion, error) {
	if p == nil {
		return nil, fmt.Errorf("persona cannot be nil")
	}
	if history == nil {
		return nil, fmt.Errorf("history store cannot be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}

	return &Companion{
		persona:           p,
		history:           history,
		retriever:         contextRetriever,
		backend:           backend,
		log:               log.With("component", "companion", "persona", p.Name),
		historyLimit:      historyLimit,
		generationTimeout: generationTimeout,
	}, nil
}

// Persona returns the companion's persona.
func (c *Companion) Persona() *persona.Persona { return c.persona }

// ExecuteTurn runs one conversational turn. The user's message is recorded
// before any generation attempt: even when generation fails, the input
// stays durably in history. The reply is recorded if and only if the
// backend returned non-empty text. maxReplyLength <= 0 means no reply
// constraint.
func (c *Companion) ExecuteTurn(ctx context.Context, conversationID, userInput, userName string, maxReplyLength int) (string, error) {
	log := c.log.With("conversation_id", conversationID)

	// Phase 1: record input, unconditionally before generation.
	if err := c.history.AppendTurn(ctx, conversationID, "Human: "+userInput+"\n"); err != nil {
		return "", fmt.Errorf("failed to record user message: %w", err)
	}

	// Phase 2: gather context.
	recentHistory, err := c.history.RecentHistory(ctx, conversationID, c.historyLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read recent history, proceeding without it", "error", err)
		recentHistory = ""
	}

	relevantHistory := c.relevantContext(ctx, userInput, log)

	// Phase 3: assemble and generate.
	prompt, err := c.persona.BuildPrompt(userName, relevantHistory, recentHistory, maxReplyLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	genCtx := ctx
	if c.generationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, c.generationTimeout)
		defer cancel()
	}

	reply, err := c.backend.Generate(genCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if reply == "" {
		log.WarnContext(ctx, "Backend returned empty reply, nothing recorded")
		return "", nil
	}

	// Phase 4: record output.
	if err := c.history.AppendTurn(ctx, conversationID, reply+"\n"); err != nil {
		// The reply was generated; losing the history write should not
		// swallow the answer itself.
		log.ErrorContext(ctx, "Failed to record companion reply", "error", err)
	}

	return reply, nil
}

// relevantContext returns the relevant-history text for a turn: the top-K
// retrieved passages when the retriever is configured and has matches, the
// static persona backstory otherwise. Retrieval failures degrade to the
// backstory rather than failing the turn.
func (c *Companion) relevantContext(ctx context.Context, query string, log *slog.Logger) string {
	if c.retriever == nil {
		return c.persona.Backstory()
	}

	passages, err := c.retriever.Query(ctx, query, 0)
	if err != nil {
		log.WarnContext(ctx, "Relevance retrieval failed, falling back to backstory", "error", err)
		return c.persona.Backstory()
	}
	if len(passages) == 0 {
		return c.persona.Backstory()
	}

	return retriever.JoinPassages(passages)
}
