package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/crawld/internal/domain/model"
)

func progressDoc(i int) model.Document {
	return model.Document{Metadata: model.DocumentMetadata{SourceURL: fmt.Sprintf("https://example.com/%d", i)}}
}

func TestProgressBufferAppendsInOrder(t *testing.T) {
	buf := NewProgressBuffer()
	for i := range 3 {
		buf.Append(progressDoc(i))
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "https://example.com/0", snap[0].Metadata.SourceURL)
	assert.Equal(t, "https://example.com/2", snap[2].Metadata.SourceURL)
}

func TestProgressBufferEvictsOldestPastCap(t *testing.T) {
	buf := NewProgressBuffer()
	for i := range ProgressBufferCap + 1 {
		buf.Append(progressDoc(i))
	}

	assert.Equal(t, ProgressBufferCap, buf.Len())
	snap := buf.Snapshot()
	assert.Equal(t, "https://example.com/1", snap[0].Metadata.SourceURL)
	assert.Equal(t,
		fmt.Sprintf("https://example.com/%d", ProgressBufferCap),
		snap[len(snap)-1].Metadata.SourceURL,
	)
}

func TestProgressBufferSnapshotIsCopy(t *testing.T) {
	buf := NewProgressBuffer()
	buf.Append(progressDoc(0))

	snap := buf.Snapshot()
	snap[0].Metadata.SourceURL = "mutated"

	assert.Equal(t, "https://example.com/0", buf.Snapshot()[0].Metadata.SourceURL)
}
