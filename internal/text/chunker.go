package text

import (
	"strings"
	"unicode/utf8"
)

// DefaultHeaders are the resume section markers tried, in priority order,
// when splitting structured documents.
var DefaultHeaders = []string{
	"\nОпыт работы",
	"\nОбразование",
	"\nНавыки",
	"\nДополнительная информация",
}

const paragraphSep = "\n\n"

// ChunkText splits text into windows of size characters, advancing by
// size-overlap. Whitespace-only windows are skipped and the last window is
// whatever remains. A non-positive size returns the text unchanged.
func ChunkText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	n := len(runes)
	var chunks []string
	start := 0
	for start < n {
		end := min(start+size, n)
		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
		if end == n {
			break
		}
		next := end
		if overlap > 0 {
			next = end - overlap
		}
		// overlap >= size would stall the window
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// ChunkStructured splits resumes and vacancies: sections by header, then
// paragraphs packed up to size, then ChunkText for anything still too big.
// Every returned chunk is at most size characters long.
func ChunkStructured(text string, size, overlap int, headers []string) []string {
	if text == "" {
		return nil
	}
	if len(headers) == 0 {
		headers = DefaultHeaders
	}

	var chunks []string
	for _, sec := range splitByHeaders(text, headers) {
		if runeLen(sec) <= size {
			chunks = append(chunks, sec)
			continue
		}
		chunks = append(chunks, packParagraphs(sec, size, overlap)...)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if size > 0 && runeLen(c) > size {
			out = append(out, ChunkText(c, size, overlap)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// splitByHeaders splits on the first header present, re-attaching the header
// to every part after it. Each part is then split again by the headers that
// follow in priority order.
func splitByHeaders(text string, headers []string) []string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	for i, header := range headers {
		if !strings.Contains(t, header) {
			continue
		}
		rest := headers[i+1:]
		parts := strings.Split(t, header)

		var sections []string
		if strings.TrimSpace(parts[0]) != "" {
			sections = append(sections, splitByHeaders(parts[0], rest)...)
		}
		for _, part := range parts[1:] {
			sec := strings.TrimSpace(header + part)
			if sec == "" {
				continue
			}
			sections = append(sections, splitByHeaders(sec, rest)...)
		}
		return sections
	}
	if strings.TrimSpace(t) == "" {
		return nil
	}
	return []string{t}
}

func splitParagraphs(text string) []string {
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), paragraphSep)
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func packParagraphs(section string, size, overlap int) []string {
	var chunks []string
	flush := func(buf string) {
		if runeLen(buf) > size {
			chunks = append(chunks, ChunkText(buf, size, overlap)...)
			return
		}
		chunks = append(chunks, buf)
	}

	current := ""
	for _, para := range splitParagraphs(section) {
		if current != "" && runeLen(current)+len(paragraphSep)+runeLen(para) > size {
			flush(current)
			current = para
			continue
		}
		if current == "" {
			current = para
		} else {
			current += paragraphSep + para
		}
	}
	if current != "" {
		flush(current)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
