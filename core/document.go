package core

// Document is a retrieved knowledge item with a relevance score and metadata.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Content  string         `json:"content"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"meta_data,omitempty"`
}
