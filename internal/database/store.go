package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept a
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTurn appends one history entry to a conversation. Ordering is
	// insertion order.
	AppendTurn(ctx context.Context, conversationID, content string) error

	// RecentHistory returns the latest 'limit' history entries of a
	// conversation concatenated in insertion order.
	RecentHistory(ctx context.Context, conversationID string, limit int) (string, error)

	// RecentTurns returns the latest 'limit' turns of a conversation in
	// insertion order.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// DeleteConversation removes all history entries of a conversation.
	DeleteConversation(ctx context.Context, conversationID string) error

	// SaveChunks inserts indexed content chunks for a document.
	SaveChunks(ctx context.Context, chunks []*Chunk) error

	// AllChunks returns every stored chunk. Used by the retriever's
	// similarity scan.
	AllChunks(ctx context.Context) ([]*Chunk, error)

	// DocumentExists reports whether any chunk of the given document is
	// already stored.
	DocumentExists(ctx context.Context, documentID string) (bool, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendTurn appends one history entry to a conversation.
func (s *sqlxStore) AppendTurn(ctx context.Context, conversationID, content string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("turn content cannot be empty")
	}

	turn := &Turn{
		CreatedAt:      time.Now().UTC(),
		ConversationID: conversationID,
		Content:        content,
	}

	query := `
        INSERT INTO turns (conversation_id, content, created_at)
        VALUES (:conversation_id, :content, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, turn)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending turn", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("failed to append turn (conversation %s): %w", conversationID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		turn.ID = uint(id) //nolint:gosec // row counter, overflow not a concern
	}

	s.logger.DebugContext(ctx, "Turn appended", "conversation_id", conversationID, "turn_id", turn.ID)
	return nil
}

// RecentTurns returns the latest 'limit' turns of a conversation in
// insertion order.
func (s *sqlxStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation_id cannot be empty")
	}
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "conversation_id", conversationID, "default_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var turns []Turn
	query := `
        SELECT id, conversation_id, content, created_at
        FROM turns
        WHERE conversation_id = ?
        ORDER BY id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &turns, query, conversationID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent turns", "conversation_id", conversationID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent turns for conversation %s: %w", conversationID, err)
	}

	// Query returns newest-first, flip back to insertion order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	s.logger.DebugContext(ctx, "Fetched recent turns", "conversation_id", conversationID, "count", len(turns))
	return turns, nil
}

// RecentHistory returns the latest 'limit' history entries concatenated in
// insertion order. Entries already carry their trailing newline, so the
// result reads as a transcript.
func (s *sqlxStore) RecentHistory(ctx context.Context, conversationID string, limit int) (string, error) {
	turns, err := s.RecentTurns(ctx, conversationID, limit)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.Content)
	}
	return sb.String(), nil
}

// DeleteConversation removes all history entries of a conversation.
func (s *sqlxStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, conversationID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting conversation", "conversation_id", conversationID, "error", err)
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted conversation history", "conversation_id", conversationID, "count", count)
	return nil
}

// SaveChunks inserts indexed content chunks for a document inside a single
// transaction so a document is either fully indexed or not at all.
func (s *sqlxStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving chunks", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	now := time.Now().UTC()
	query := `
        INSERT INTO chunks (document_id, title, content, embedding, created_at)
        VALUES (:document_id, :title, :content, :embedding, :created_at);
    `

	for _, chunk := range chunks {
		if chunk == nil {
			return fmt.Errorf("cannot save nil chunk")
		}
		if chunk.DocumentID == "" {
			return fmt.Errorf("chunk must have a non-empty document_id")
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk must have a non-empty embedding")
		}
		chunk.CreatedAt = now

		if _, err := tx.NamedExecContext(ctx, query, chunk); err != nil {
			s.logger.ErrorContext(ctx, "Error saving chunk", "document_id", chunk.DocumentID, "error", err)
			return fmt.Errorf("failed to save chunk (document %s): %w", chunk.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Chunks saved successfully", "document_id", chunks[0].DocumentID, "count", len(chunks))
	return nil
}

// AllChunks returns every stored chunk.
func (s *sqlxStore) AllChunks(ctx context.Context) ([]*Chunk, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chunks []*Chunk
	query := `SELECT id, document_id, title, content, embedding, created_at FROM chunks`

	err := s.db.SelectContext(ctx, &chunks, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting chunks", "error", err)
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched all chunks", "count", len(chunks))
	return chunks, nil
}

// DocumentExists reports whether any chunk of the given document is stored.
func (s *sqlxStore) DocumentExists(ctx context.Context, documentID string) (bool, error) {
	if documentID == "" {
		return false, fmt.Errorf("document_id cannot be empty")
	}

	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT 1 FROM chunks WHERE document_id = ? LIMIT 1`, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking document existence", "document_id", documentID, "error", err)
		return false, fmt.Errorf("failed to check document %s: %w", documentID, err)
	}
	return exists, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
