package text

import "strings"

const (
	DialogueWindow  = 4
	DialogueOverlap = 2
)

// ChunkDialogue groups utterances (one per non-empty line) into overlapping
// windows of perChunk lines.
func ChunkDialogue(text string, perChunk, overlap int) []string {
	if text == "" {
		return nil
	}

	var lines []string
	for _, ln := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if perChunk <= 0 || len(lines) <= perChunk {
		return []string{strings.Join(lines, "\n")}
	}

	step := max(1, perChunk-overlap)
	var chunks []string
	for start := 0; start < len(lines); start += step {
		end := min(start+perChunk, len(lines))
		chunks = append(chunks, strings.Join(lines[start:end], "\n"))
		// a window that ran past the last line is the tail
		if start+perChunk > len(lines) {
			break
		}
	}
	return chunks
}
