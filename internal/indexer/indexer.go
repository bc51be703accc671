package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mveloso/companion-bot/internal/retriever"
)

// Indexer runs the sequential read, chunk, write pipeline for ingested
// documents. There is no cross-document ordering guarantee.
type Indexer struct {
	retriever  *retriever.Retriever
	splitter   textsplitter.RecursiveCharacter
	log        *slog.Logger
	httpClient *http.Client
}

// New creates an Indexer splitting content into chunks of chunkSize
// characters with chunkOverlap overlap.
func New(ret *retriever.Retriever, log *slog.Logger, chunkSize, chunkOverlap int) *Indexer {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}

	return &Indexer{
		retriever: ret,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		log:        log.With("component", "indexer"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// IndexContent loads the documents behind one source, splits each into
// chunks, and writes them into the retriever's index. It returns the
// handles of the indexed documents.
func (ix *Indexer) IndexContent(ctx context.Context, sourceType SourceType, contentOrLocation, title string) ([]string, error) {
	source, err := NewSource(sourceType, contentOrLocation, title, ix.httpClient)
	if err != nil {
		return nil, err
	}

	documents, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s source: %w", sourceType, err)
	}

	handles := make([]string, 0, len(documents))
	for _, doc := range documents {
		chunks, err := ix.splitter.SplitText(doc.Content)
		if err != nil {
			return handles, fmt.Errorf("failed to split document %s: %w", doc.ID, err)
		}

		ix.log.InfoContext(ctx, "Indexing document", "document_id", doc.ID, "title", doc.Title, "chunks", len(chunks))

		if err := ix.retriever.Index(ctx, doc.ID, doc.Title, chunks); err != nil {
			return handles, err
		}
		handles = append(handles, doc.ID)
	}

	return handles, nil
}
