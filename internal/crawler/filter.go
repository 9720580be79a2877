package crawler

import (
	"regexp"
	"strings"
)

const (
	minChunkLen  = 100
	maxChunkLen  = 1000
	minWordCount = 15
	maxLinkRatio = 0.3
)

// relevanceKeywords gates chunks to the PlayStation domain; anything a page
// yields that never mentions the platform is boilerplate or off-topic.
var relevanceKeywords = regexp.MustCompile(`(?i)playstation|ps[1-5]|psx|dualsense|dualshock|console|specs|hardware|` +
	`blu-ray|controller|gpu|cpu|ram|teraflops|ssd|hdmi|sony|game|` +
	`exclusive|release|update|firmware|store|network|psn|trophy|vita|psp|vr`)

var markdownLink = regexp.MustCompile(`\[.*?\]\(.*?\)`)

// FilterChunks keeps chunks that look like prose about the knowledge
// domain: bounded length, enough words, not link farms, on topic.
func FilterChunks(chunks []string) []string {
	var filtered []string
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk)
		if len(text) < minChunkLen || len(text) > maxChunkLen {
			continue
		}
		words := strings.Fields(text)
		if len(words) < minWordCount {
			continue
		}
		if links := markdownLink.FindAllString(text, -1); len(links) > 0 {
			if float64(len(links))/float64(len(words)) > maxLinkRatio {
				continue
			}
		}
		if !relevanceKeywords.MatchString(text) {
			continue
		}
		filtered = append(filtered, text)
	}
	return filtered
}
