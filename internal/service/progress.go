package service

import "github.com/target/crawld/internal/domain/model"

// ProgressBufferCap bounds the number of recent documents retained for live
// status polling. The final result set is computed from the full document
// stream, never from this buffer.
const ProgressBufferCap = 50

// ProgressBuffer is an ordered window of the most recent documents produced
// by an in-flight job. Appending past the cap evicts the oldest entry. It is
// owned by a single executor goroutine and is not safe for concurrent use.
type ProgressBuffer struct {
	docs []model.Document
}

// NewProgressBuffer returns an empty buffer with the standard cap.
func NewProgressBuffer() *ProgressBuffer {
	return &ProgressBuffer{docs: make([]model.Document, 0, ProgressBufferCap)}
}

// Append adds a document, evicting the oldest entry when full.
func (b *ProgressBuffer) Append(doc model.Document) {
	if len(b.docs) >= ProgressBufferCap {
		copy(b.docs, b.docs[1:])
		b.docs[len(b.docs)-1] = doc
		return
	}
	b.docs = append(b.docs, doc)
}

// Len returns the number of buffered documents.
func (b *ProgressBuffer) Len() int {
	return len(b.docs)
}

// Snapshot returns a copy of the buffered documents, oldest first.
func (b *ProgressBuffer) Snapshot() []model.Document {
	out := make([]model.Document, len(b.docs))
	copy(out, b.docs)
	return out
}
