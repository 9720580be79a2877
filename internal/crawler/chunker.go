package crawler

import "strings"

// separators tried in order when splitting text; the empty string is a
// last-resort character split for pathological unbroken runs.
var separators = []string{"\n\n", "\n", " ", ""}

// Split breaks text into chunks of at most size characters, preferring
// paragraph then line then word boundaries, with overlap characters of
// trailing context carried into each following chunk.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}
	return splitRecursive(text, size, overlap, separators)
}

func splitRecursive(text string, size, overlap int, seps []string) []string {
	if len(text) <= size {
		return []string{text}
	}

	sep := seps[len(seps)-1]
	rest := seps
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for start := 0; start < len(text); start += size {
			pieces = append(pieces, text[start:min(start+size, len(text))])
		}
	} else {
		for _, p := range strings.Split(text, sep) {
			if p == "" {
				continue
			}
			if len(p) > size {
				pieces = append(pieces, splitRecursive(p, size, overlap, rest)...)
			} else {
				pieces = append(pieces, p)
			}
		}
	}

	return merge(pieces, sep, size, overlap)
}

// merge greedily packs pieces into chunks no longer than size, seeding each
// new chunk with trailing pieces of the previous one up to overlap chars.
func merge(pieces []string, sep string, size, overlap int) []string {
	var (
		chunks  []string
		current []string
		length  int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, sep)))

		// Retain the tail as overlap for the next chunk.
		var kept []string
		keptLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			pieceLen := len(current[i]) + len(sep)
			if keptLen+pieceLen > overlap {
				break
			}
			kept = append([]string{current[i]}, kept...)
			keptLen += pieceLen
		}
		current = kept
		length = keptLen
	}

	for _, p := range pieces {
		pieceLen := len(p) + len(sep)
		if length+pieceLen > size && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		length += pieceLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, sep)))
	}
	return chunks
}
