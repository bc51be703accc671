package retriever

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mveloso/companion-bot/internal/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	docVectors   [][]float32
	queryVector  []float32
	docErr       error
	queryErr     error
	embeddedDocs []string
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.docErr != nil {
		return nil, f.docErr
	}
	f.embeddedDocs = append(f.embeddedDocs, texts...)
	return f.docVectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryVector, nil
}

type fakeChunkStore struct {
	chunks    []*database.Chunk
	existing  map[string]bool
	saveErr   error
	allErr    error
	existsErr error
}

func (f *fakeChunkStore) SaveChunks(_ context.Context, chunks []*database.Chunk) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeChunkStore) AllChunks(context.Context) ([]*database.Chunk, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.chunks, nil
}

func (f *fakeChunkStore) DocumentExists(_ context.Context, documentID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[documentID], nil
}

func chunkWithEmbedding(docID, content string, embedding []float32) *database.Chunk {
	return &database.Chunk{
		DocumentID: docID,
		Content:    content,
		Embedding:  encodeFloat32Blob(embedding),
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()

	t.Run("embeds and persists chunks", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{}
		embedder := &fakeEmbedder{docVectors: [][]float32{{1, 0}, {0, 1}}}
		r := New(store, embedder, testLogger(), 3)

		err := r.Index(context.Background(), "doc-1", "A Title", []string{"first", "second"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(store.chunks) != 2 {
			t.Fatalf("expected 2 saved chunks, got %d", len(store.chunks))
		}
		for i, want := range []string{"first", "second"} {
			if store.chunks[i].Content != want {
				t.Errorf("chunk %d: expected content %q, got %q", i, want, store.chunks[i].Content)
			}
			if store.chunks[i].DocumentID != "doc-1" {
				t.Errorf("chunk %d: expected document doc-1, got %q", i, store.chunks[i].DocumentID)
			}
			if len(store.chunks[i].Embedding) == 0 {
				t.Errorf("chunk %d: missing embedding blob", i)
			}
		}
	})

	t.Run("rejects duplicate document handle", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{existing: map[string]bool{"doc-1": true}}
		embedder := &fakeEmbedder{}
		r := New(store, embedder, testLogger(), 3)

		err := r.Index(context.Background(), "doc-1", "", []string{"content"})
		if !errors.Is(err, ErrDocumentExists) {
			t.Fatalf("expected ErrDocumentExists, got %v", err)
		}
		if len(embedder.embeddedDocs) != 0 {
			t.Error("duplicate document should not be embedded")
		}
	})

	t.Run("empty contents is a no-op", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{}
		r := New(store, &fakeEmbedder{}, testLogger(), 3)

		if err := r.Index(context.Background(), "doc-1", "", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.chunks) != 0 {
			t.Error("no chunks should be saved for empty contents")
		}
	})

	t.Run("empty document id is rejected", func(t *testing.T) {
		t.Parallel()

		r := New(&fakeChunkStore{}, &fakeEmbedder{}, testLogger(), 3)
		if err := r.Index(context.Background(), "", "", []string{"content"}); err == nil {
			t.Fatal("expected error for empty document id, got nil")
		}
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	t.Run("ranks by cosine similarity descending", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{chunks: []*database.Chunk{
			chunkWithEmbedding("doc-1", "orthogonal", []float32{0, 1}),
			chunkWithEmbedding("doc-1", "exact match", []float32{1, 0}),
			chunkWithEmbedding("doc-2", "close match", []float32{1, 0.5}),
		}}
		embedder := &fakeEmbedder{queryVector: []float32{1, 0}}
		r := New(store, embedder, testLogger(), 2)

		passages, err := r.Query(context.Background(), "query", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(passages) != 2 {
			t.Fatalf("expected top 2 passages, got %d", len(passages))
		}
		if passages[0].Content != "exact match" {
			t.Errorf("expected best passage first, got %q", passages[0].Content)
		}
		if passages[1].Content != "close match" {
			t.Errorf("expected second-best passage, got %q", passages[1].Content)
		}
		if passages[0].Similarity < passages[1].Similarity {
			t.Error("passages not ordered by descending similarity")
		}
	})

	t.Run("explicit k overrides default", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{chunks: []*database.Chunk{
			chunkWithEmbedding("doc-1", "a", []float32{1, 0}),
			chunkWithEmbedding("doc-1", "b", []float32{0.9, 0.1}),
			chunkWithEmbedding("doc-1", "c", []float32{0, 1}),
		}}
		r := New(store, &fakeEmbedder{queryVector: []float32{1, 0}}, testLogger(), 3)

		passages, err := r.Query(context.Background(), "query", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(passages) != 1 {
			t.Fatalf("expected 1 passage, got %d", len(passages))
		}
	})

	t.Run("blank query yields no passages", func(t *testing.T) {
		t.Parallel()

		r := New(&fakeChunkStore{}, &fakeEmbedder{}, testLogger(), 3)
		passages, err := r.Query(context.Background(), "   ", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if passages != nil {
			t.Errorf("expected nil passages, got %v", passages)
		}
	})

	t.Run("empty store yields no passages", func(t *testing.T) {
		t.Parallel()

		r := New(&fakeChunkStore{}, &fakeEmbedder{queryVector: []float32{1}}, testLogger(), 3)
		passages, err := r.Query(context.Background(), "query", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(passages) != 0 {
			t.Errorf("expected no passages, got %d", len(passages))
		}
	})

	t.Run("embedder failure wraps ErrRetrieval", func(t *testing.T) {
		t.Parallel()

		r := New(&fakeChunkStore{}, &fakeEmbedder{queryErr: errors.New("service down")}, testLogger(), 3)
		if _, err := r.Query(context.Background(), "query", 0); !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected ErrRetrieval, got %v", err)
		}
	})

	t.Run("mismatched chunk dimensions are skipped", func(t *testing.T) {
		t.Parallel()

		store := &fakeChunkStore{chunks: []*database.Chunk{
			chunkWithEmbedding("doc-1", "bad dims", []float32{1, 0, 0}),
			chunkWithEmbedding("doc-1", "good", []float32{1, 0}),
		}}
		r := New(store, &fakeEmbedder{queryVector: []float32{1, 0}}, testLogger(), 3)

		passages, err := r.Query(context.Background(), "query", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(passages) != 1 || passages[0].Content != "good" {
			t.Errorf("expected only the dimension-matched chunk, got %v", passages)
		}
	})
}

func TestJoinPassages(t *testing.T) {
	t.Parallel()

	got := JoinPassages([]Passage{{Content: "one"}, {Content: "two"}})
	if got != "one\ntwo" {
		t.Errorf("expected joined passages, got %q", got)
	}
	if JoinPassages(nil) != "" {
		t.Error("expected empty string for no passages")
	}
}
