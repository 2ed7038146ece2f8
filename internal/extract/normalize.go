package extract

import "strings"

// Paragraphs shorter than this are treated as navigation noise or stray
// headers and dropped during normalization.
const minParagraphChars = 20

// Normalize collapses blank-line runs and drops degenerate near-empty
// paragraphs. It never returns an empty string for non-empty input: when
// filtering would discard everything, the trimmed original is returned so
// short documents still get indexed.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	paragraphs := strings.Split(trimmed, "\n\n")
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if len(p) > minParagraphChars {
			kept = append(kept, p)
		}
	}

	if len(kept) == 0 {
		return trimmed
	}
	return strings.Join(kept, "\n\n")
}
