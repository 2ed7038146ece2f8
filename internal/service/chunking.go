package service

import "strings"

// ChunkConfig controls how document text is split for embedding.
// ChunkSize and Overlap are both character budgets; the overlap budget is
// converted to a token count at roughly five characters per word.
type ChunkConfig struct {
	ChunkSize int
	Overlap   int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 500,
		Overlap:   50,
	}
}

// ChunkText splits text on whitespace and accumulates tokens into chunks.
// A chunk is emitted once adding the next token would push its space-joined
// length past cfg.ChunkSize, with the tail tokens carried into the next
// chunk's buffer for overlap. Remaining tokens are emitted as a final short
// chunk. Empty input yields nil, which ingestion treats as "nothing to index"
// rather than an error.
//
// Deterministic: identical (text, cfg) always yields an identical sequence.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkConfig()
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	overlapWords := 0
	if cfg.Overlap > 0 {
		overlapWords = cfg.Overlap / 5
		if overlapWords < 1 {
			overlapWords = 1
		}
	}

	var chunks []string
	var buf []string
	length := 0

	for _, word := range words {
		added := len(word)
		if length > 0 {
			added++ // joining space
		}

		if length > 0 && length+added > cfg.ChunkSize {
			chunks = append(chunks, strings.Join(buf, " "))

			if overlapWords > 0 {
				start := len(buf) - overlapWords
				if start < 0 {
					start = 0
				}
				buf = append([]string(nil), buf[start:]...)
			} else {
				buf = nil
			}
			length = len(strings.Join(buf, " "))
			added = len(word)
			if length > 0 {
				added++
			}
		}

		buf = append(buf, word)
		length += added
	}

	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, " "))
	}

	return chunks
}
