package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Chunker splits documents into overlapping chunks around a target character
// size, keeping sentence boundaries where the text has them. Chunk ids are
// content hashes of the normalized text, so unchanged input always produces
// the same chunks.
type Chunker struct {
	targetSize int
	overlap    int
}

func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = 800
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = targetSize / 4
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

func (c *Chunker) Chunk(doc Document) []vectorstore.Chunk {
	text := normalizeText(doc.Text)
	if text == "" {
		return nil
	}

	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var pieces []string
	var current []string
	currentLen := 0
	for i := 0; i < len(sentences); i++ {
		current = append(current, sentences[i])
		currentLen += len(sentences[i]) + 1
		if currentLen < c.targetSize {
			continue
		}
		pieces = append(pieces, strings.Join(current, " "))

		// Walk back far enough to carry roughly overlap characters of
		// trailing context into the next chunk.
		carried := 0
		var next []string
		for j := len(current) - 1; j > 0 && carried < c.overlap; j-- {
			next = append([]string{current[j]}, next...)
			carried += len(current[j]) + 1
		}
		current = next
		currentLen = carried
	}
	if currentLen > 0 && strings.TrimSpace(strings.Join(current, " ")) != "" {
		tail := strings.Join(current, " ")
		if len(pieces) == 0 || !strings.HasSuffix(pieces[len(pieces)-1], tail) {
			pieces = append(pieces, tail)
		}
	}

	chunks := make([]vectorstore.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, vectorstore.Chunk{
			ID:         contentHash(piece),
			DocumentID: doc.ID,
			Location:   fmt.Sprintf("%s#%d", doc.ID, i),
			Text:       piece,
			Metadata:   doc.Metadata,
		})
	}
	return chunks
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
