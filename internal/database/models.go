package database

import "time"

// Turn is one append-only entry in a conversation's history. Content holds
// the full recorded line, speaker tag and trailing newline included, so
// concatenating turns in insertion order reproduces the transcript.
type Turn struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ConversationID string `db:"conversation_id"`
	Content        string `db:"content"`
}

// Chunk is one indexed passage of an ingested document, stored together
// with its embedding vector (little-endian float32 blob).
type Chunk struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	DocumentID string `db:"document_id"`
	Title      string `db:"title"`
	Content    string `db:"content"`
	Embedding  []byte `db:"embedding"`
}
