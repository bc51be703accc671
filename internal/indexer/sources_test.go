package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestConvertToHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "simple title", title: "My Story", want: "my-story"},
		{name: "already a handle", title: "my-story", want: "my-story"},
		{name: "punctuation collapsed", title: "Alice's Diary, Vol. 2!", want: "alice-s-diary-vol-2"},
		{name: "leading and trailing separators trimmed", title: "  --Hello--  ", want: "hello"},
		{name: "empty title", title: "", want: ""},
		{name: "only punctuation", title: "!!!", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := convertToHandle(tc.title); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNewSourceDispatch(t *testing.T) {
	t.Parallel()

	for _, st := range []SourceType{SourceTypeText, SourceTypeFile, SourceTypePDF, SourceTypeTranscript} {
		if _, err := NewSource(st, "location", "title", nil); err != nil {
			t.Errorf("expected source for type %s, got error: %v", st, err)
		}
	}

	if _, err := NewSource(SourceType("AUDIO"), "location", "title", nil); err == nil {
		t.Error("expected error for unknown source type, got nil")
	}
}

func TestTextSource(t *testing.T) {
	t.Parallel()

	t.Run("wraps inline content", func(t *testing.T) {
		t.Parallel()

		src, err := NewSource(SourceTypeText, "inline body", "Some Notes", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		docs, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected one document, got %d", len(docs))
		}
		if docs[0].Content != "inline body" {
			t.Errorf("expected inline content, got %q", docs[0].Content)
		}
		if docs[0].ID != "some-notes" {
			t.Errorf("expected handle derived from title, got %q", docs[0].ID)
		}
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		t.Parallel()

		src, err := NewSource(SourceTypeText, "   ", "title", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := src.Load(context.Background()); err == nil {
			t.Fatal("expected error for empty content, got nil")
		}
	})

	t.Run("untitled document gets generated handle", func(t *testing.T) {
		t.Parallel()

		src, err := NewSource(SourceTypeText, "body", "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		docs, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs[0].ID == "" {
			t.Error("expected generated document handle, got empty")
		}
	})
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("file body"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	src, err := NewSource(SourceTypeFile, path, "Field Notes", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs[0].Content != "file body" {
		t.Errorf("expected file content, got %q", docs[0].Content)
	}
	if docs[0].ID != "field-notes" {
		t.Errorf("expected handle from title, got %q", docs[0].ID)
	}

	missing, err := NewSource(SourceTypeFile, filepath.Join(t.TempDir(), "missing.txt"), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := missing.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestTranscriptSource(t *testing.T) {
	t.Parallel()

	t.Run("fetches transcript over http", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("transcript body"))
		}))
		defer srv.Close()

		src, err := NewSource(SourceTypeTranscript, srv.URL, "Episode One", srv.Client())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		docs, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if docs[0].Content != "transcript body" {
			t.Errorf("expected transcript content, got %q", docs[0].Content)
		}
		if docs[0].ID != "episode-one" {
			t.Errorf("expected handle from title, got %q", docs[0].ID)
		}
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		src, err := NewSource(SourceTypeTranscript, srv.URL, "", srv.Client())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := src.Load(context.Background()); err == nil {
			t.Fatal("expected error for 404 response, got nil")
		}
	})
}
