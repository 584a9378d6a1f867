package property

import "strings"

// ChunkKind identifies the origin of a text chunk.
type ChunkKind string

// ChunkKind values.
const (
	ChunkDescription ChunkKind = "description"
	ChunkCertificate ChunkKind = "certificate"
)

// Valid reports whether k is a known kind.
func (k ChunkKind) Valid() bool {
	return k == ChunkDescription || k == ChunkCertificate
}

// Chunk is a unit of text embedded independently for semantic search.
type Chunk struct {
	propertyID string
	kind       ChunkKind
	text       string
}

// NewChunk creates a Chunk.
func NewChunk(propertyID string, kind ChunkKind, text string) Chunk {
	return Chunk{propertyID: propertyID, kind: kind, text: text}
}

// PropertyID returns the owning property.
func (c Chunk) PropertyID() string { return c.propertyID }

// Kind returns the chunk kind.
func (c Chunk) Kind() ChunkKind { return c.kind }

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// BuildChunks returns the chunks for one listing. The description chunk is
// always first. A single certificate chunk follows when any certificate
// text was extracted; texts that are blank after trimming are ignored and
// the rest are joined with a space.
func BuildChunks(listing Listing, certificateTexts []string) []Chunk {
	chunks := []Chunk{NewChunk(listing.propertyID, ChunkDescription, listing.DescriptionText())}

	parts := make([]string, 0, len(certificateTexts))
	for _, t := range certificateTexts {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) > 0 {
		chunks = append(chunks, NewChunk(listing.propertyID, ChunkCertificate, strings.Join(parts, " ")))
	}
	return chunks
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	return texts
}
