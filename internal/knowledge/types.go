package knowledge

import "time"

// Passage is a single similarity-search hit from the content table.
type Passage struct {
	Text       string
	SourceURL  string
	PageTitle  string
	Similarity float32 // cosine similarity in [0, 1]
}

// Chunk is one embedded slice of a scraped page, ready for storage.
type Chunk struct {
	Text      string
	Embedding []float32
}

// Page identifies the scraped page a set of chunks belongs to.
type Page struct {
	SourceURL string
	Title     string
	ScrapedAt time.Time
}
