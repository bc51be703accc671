// Package indexer ingests external documents, normalizes them into chunks,
// and writes them into the relevance retriever's backing index.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// SourceType identifies one of the supported document source kinds.
type SourceType string

// The closed set of document sources the indexer accepts.
const (
	SourceTypeText       SourceType = "TEXT"       // raw text passed inline
	SourceTypeFile       SourceType = "FILE"       // UTF-8 text file on disk
	SourceTypePDF        SourceType = "PDF"        // PDF file on disk
	SourceTypeTranscript SourceType = "TRANSCRIPT" // plain-text transcript fetched over HTTP
)

const maxFetchBytes = 10 << 20 // cap on fetched transcript size

// Document is one normalized unit of ingested content.
type Document struct {
	ID      string
	Title   string
	Content string
}

// Source loads zero or more documents from one external location.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// NewSource dispatches on the source type and returns the matching Source.
// Unknown types are an error: the set is closed.
func NewSource(sourceType SourceType, contentOrLocation, title string, httpClient *http.Client) (Source, error) {
	switch sourceType {
	case SourceTypeText:
		return textSource{content: contentOrLocation, title: title}, nil
	case SourceTypeFile:
		return fileSource{path: contentOrLocation, title: title}, nil
	case SourceTypePDF:
		return pdfSource{path: contentOrLocation, title: title}, nil
	case SourceTypeTranscript:
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 30 * time.Second}
		}
		return transcriptSource{url: contentOrLocation, title: title, client: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q", sourceType)
	}
}

type textSource struct {
	content string
	title   string
}

func (s textSource) Load(_ context.Context) ([]Document, error) {
	if strings.TrimSpace(s.content) == "" {
		return nil, fmt.Errorf("text source has empty content")
	}
	return []Document{newDocument(s.title, s.content)}, nil
}

type fileSource struct {
	path  string
	title string
}

func (s fileSource) Load(_ context.Context) ([]Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.path, err)
	}

	title := s.title
	if title == "" {
		title = s.path
	}
	return []Document{newDocument(title, string(data))}, nil
}

type pdfSource struct {
	path  string
	title string
}

func (s pdfSource) Load(_ context.Context) ([]Document, error) {
	f, r, err := pdf.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", s.path, err)
	}
	defer f.Close()

	plainText, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF %s: %w", s.path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plainText); err != nil {
		return nil, fmt.Errorf("failed to read PDF text %s: %w", s.path, err)
	}

	title := s.title
	if title == "" {
		title = s.path
	}
	return []Document{newDocument(title, buf.String())}, nil
}

type transcriptSource struct {
	url    string
	title  string
	client *http.Client
}

func (s transcriptSource) Load(ctx context.Context) ([]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid transcript URL %s: %w", s.url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript fetch %s returned status %d", s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript body %s: %w", s.url, err)
	}

	title := s.title
	if title == "" {
		title = s.url
	}
	return []Document{newDocument(title, string(data))}, nil
}

func newDocument(title, content string) Document {
	id := convertToHandle(title)
	if id == "" {
		id = uuid.NewString()
	}
	return Document{ID: id, Title: title, Content: content}
}

// convertToHandle derives a stable document handle from a title:
// lowercase, alphanumeric runs joined by single dashes.
func convertToHandle(title string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}
