// Package prompt composes the grounding instruction presented to the chat
// model as the system message.
package prompt

import (
	"fmt"

	"github.com/playwise/playwise/internal/retrieval"
)

// toolUsage states the capability's name and invocation criteria. It is
// shared verbatim by both branches so the model's decision procedure does
// not depend on whether context was found.
const toolUsage = `You have access to a tool named "search_and_scrape". ` +
	`Use it when the user explicitly asks you to update or search for new information, ` +
	`or when your internal knowledge is insufficient to answer the question. ` +
	`It searches the web and schedules discovered pages for indexing.`

// groundedTemplate is used when retrieval produced context.
const groundedTemplate = `You are a PlayStation expert assistant. Answer the user's question primarily from the reference context below.

Reference context:
%s

Rules:
- Base your answer on the reference context above. If the context does not cover the question, say so honestly and consider using the search_and_scrape tool.
- %s
- Cite sources inline using the passage's page title and URL, e.g. [PS5 Specs](https://example.com/ps5).
- End your answer with a "Sources" section listing only the sources you actually used.`

// fallbackTemplate is used when retrieval produced nothing.
const fallbackTemplate = `You are a PlayStation expert assistant. No relevant reference knowledge was found for this question.

Rules:
- %s Acquiring fresh knowledge with it is the preferred way to answer questions you are unsure about.
- If you are confident in a general answer, you may give it directly.`

// BuildInstruction returns the system instruction for one request.
// The grounded branch fires when retrieval found context; the fallback
// branch otherwise. Both state the tool's invocation criteria identically.
func BuildInstruction(result retrieval.Result) string {
	if result.Empty() {
		return fmt.Sprintf(fallbackTemplate, toolUsage)
	}
	return fmt.Sprintf(groundedTemplate, result.ContextBlock, toolUsage)
}
