package domain

import "time"

// Modality is the kind of content an embedding represents.
type Modality string

const (
	// ModalityText marks embeddings of textual content.
	ModalityText Modality = "text"
	// ModalityImage marks embeddings of image content.
	ModalityImage Modality = "image"
)

// IsValid reports whether the modality is a known value.
func (m Modality) IsValid() bool {
	return m == ModalityText || m == ModalityImage
}

// Reference collections owned by the external source store.
const (
	CollectionDocuments = "documents"
	CollectionImages    = "images"
)

// EmbeddingRecord is one stored vector with its provenance. Records are written
// at ingestion time by an external collaborator and read-only to the engine.
type EmbeddingRecord struct {
	ID            string
	Vector        Vector
	Modality      Modality
	ModelID       string
	RefID         string
	RefCollection string
	CreatedAt     time.Time
	Metadata      map[string]string
	// Content is the indexed lexical text for hybrid scoring. Empty for
	// image records.
	Content string
}

// Filter restricts which embedding records a retrieval considers. The zero
// value matches everything.
type Filter struct {
	RefCollection string
	Modality      Modality
	Metadata      map[string]string
	CreatedFrom   time.Time
	CreatedTo     time.Time
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return f.RefCollection == "" && f.Modality == "" && len(f.Metadata) == 0 &&
		f.CreatedFrom.IsZero() && f.CreatedTo.IsZero()
}

// Matches applies the filter to a record in memory. Used by the full-scan
// fallback path; the ANN path translates the same conditions into backend
// pre-filters, and both paths must agree.
func (f Filter) Matches(r EmbeddingRecord) bool {
	if f.RefCollection != "" && r.RefCollection != f.RefCollection {
		return false
	}
	if f.Modality != "" && r.Modality != f.Modality {
		return false
	}
	for k, v := range f.Metadata {
		if r.Metadata[k] != v {
			return false
		}
	}
	if !f.CreatedFrom.IsZero() && r.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && r.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}
