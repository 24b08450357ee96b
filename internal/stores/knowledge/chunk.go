package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Chunk packs paragraphs into pieces of at most size runes. Paragraphs
// longer than size are cut into windows that overlap by overlap runes.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, para := range splitParagraphs(text) {
		runes := []rune(para)
		if len(runes) > size {
			flush()
			step := size - overlap
			for start := 0; start < len(runes); start += step {
				end := min(start+size, len(runes))
				if s := strings.TrimSpace(string(runes[start:end])); s != "" {
					chunks = append(chunks, s)
				}
				if end == len(runes) {
					break
				}
			}
			continue
		}

		if curLen > 0 && curLen+2+len(runes) > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += utf8.RuneCountInString(para)
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
