// Package retriever implements semantic relevance retrieval over indexed
// content chunks. Chunks are embedded once at index time and ranked at
// query time by cosine similarity against the query embedding.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mveloso/companion-bot/internal/database"
)

var (
	// ErrRetrieval indicates a relevance query failure. Callers on the
	// turn path degrade to static context instead of failing the turn.
	ErrRetrieval = errors.New("relevance retrieval failed")

	// ErrDocumentExists indicates the document handle is already indexed.
	ErrDocumentExists = errors.New("document already indexed")
)

// Embedder produces embedding vectors for documents and queries.
// Satisfied by gemini.Client.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore persists and enumerates indexed chunks.
// Satisfied by database.Store.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []*database.Chunk) error
	AllChunks(ctx context.Context) ([]*database.Chunk, error)
	DocumentExists(ctx context.Context, documentID string) (bool, error)
}

// Passage is one retrieved chunk with its similarity score.
type Passage struct {
	DocumentID string
	Title      string
	Content    string
	Similarity float64
}

// Retriever indexes content chunks and answers top-K relevance queries.
type Retriever struct {
	store    ChunkStore
	embedder Embedder
	log      *slog.Logger
	topK     int
}

// New creates a Retriever. topK is the default passage count for Query
// when the caller passes a non-positive k.
func New(store ChunkStore, embedder Embedder, log *slog.Logger, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		log:      log.With("component", "retriever"),
		topK:     topK,
	}
}

// Index embeds the given content chunks and persists them under the
// document handle. Indexing the same handle twice fails with
// ErrDocumentExists.
func (r *Retriever) Index(ctx context.Context, documentID, title string, contents []string) error {
	if documentID == "" {
		return fmt.Errorf("document_id cannot be empty")
	}
	if len(contents) == 0 {
		r.log.WarnContext(ctx, "Nothing to index for document", "document_id", documentID)
		return nil
	}

	exists, err := r.store.DocumentExists(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to check document %s: %w", documentID, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDocumentExists, documentID)
	}

	embeddings, err := r.embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", documentID, err)
	}

	chunks := make([]*database.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = &database.Chunk{
			DocumentID: documentID,
			Title:      title,
			Content:    content,
			Embedding:  encodeFloat32Blob(embeddings[i]),
		}
	}

	if err := r.store.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to save chunks for document %s: %w", documentID, err)
	}

	r.log.InfoContext(ctx, "Indexed document", "document_id", documentID, "chunks", len(chunks))
	return nil
}

// Query returns the top-k passages most similar to the query text, ordered
// by descending similarity. A non-positive k uses the configured default.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.topK
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	chunks, err := r.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	passages := make([]Passage, 0, len(chunks))
	for _, chunk := range chunks {
		chunkEmbedding := decodeFloat32Blob(chunk.Embedding)
		if len(chunkEmbedding) == 0 {
			r.log.WarnContext(ctx, "Skipping chunk with empty embedding", "chunk_id", chunk.ID)
			continue
		}

		similarity, err := cosineSimilarity(queryEmbedding, chunkEmbedding)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping chunk with mismatched embedding", "chunk_id", chunk.ID, "error", err)
			continue
		}

		passages = append(passages, Passage{
			DocumentID: chunk.DocumentID,
			Title:      chunk.Title,
			Content:    chunk.Content,
			Similarity: similarity,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Similarity > passages[j].Similarity
	})

	if len(passages) > k {
		passages = passages[:k]
	}

	r.log.DebugContext(ctx, "Relevance query completed", "candidates", len(chunks), "returned", len(passages))
	return passages, nil
}

// JoinPassages renders retrieved passages as the relevant-history text
// inserted into the prompt.
func JoinPassages(passages []Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n")
}
