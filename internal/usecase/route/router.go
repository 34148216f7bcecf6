// Package route maps a query's input/target modality pair onto an execution
// plan: which encoder embeds the query, which indexes are tried, and how the
// scores must be qualified.
package route

import (
	"fmt"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// Plan is the routing decision for one query.
type Plan struct {
	// Encoder embeds the query input.
	Encoder domain.CrossModalEmbedder
	// EncoderName is the metrics/log label of the chosen encoder.
	EncoderName string
	// Indexes is the ANN index priority order for the target modality.
	Indexes []string
	// Filter carries the forced target-modality condition.
	Filter domain.Filter
	// AllowTruncate permits prefix-truncated scoring for cross-family modes.
	AllowTruncate bool
	// LowConfidence marks modes that score across encoder families.
	LowConfidence bool
}

// Router selects encoders and indexes per modality pair.
type Router struct {
	text domain.CrossModalEmbedder
	clip domain.CrossModalEmbedder

	textIndexes  []string
	imageIndexes []string
}

// New creates a router. text is the general text encoder; clip is the joint
// text/image encoder family.
func New(text, clip domain.CrossModalEmbedder, textIndexes, imageIndexes []string) *Router {
	return &Router{
		text:         text,
		clip:         clip,
		textIndexes:  textIndexes,
		imageIndexes: imageIndexes,
	}
}

// Plan resolves the execution plan for an input/target modality pair. The
// encoder family always follows the candidate side: text queries against
// image candidates use the CLIP text tower, never the general text encoder.
func (r *Router) Plan(input, target domain.Modality) (Plan, error) {
	if !input.IsValid() || !target.IsValid() {
		return Plan{}, fmt.Errorf("modality pair %q->%q: %w", input, target, domain.ErrValidation)
	}

	switch {
	case input == domain.ModalityText && target == domain.ModalityText:
		return Plan{
			Encoder:     r.text,
			EncoderName: "text",
			Indexes:     r.textIndexes,
			Filter:      domain.Filter{Modality: domain.ModalityText},
		}, nil

	case input == domain.ModalityText && target == domain.ModalityImage:
		return Plan{
			Encoder:     r.clip,
			EncoderName: "clip",
			Indexes:     r.imageIndexes,
			Filter:      domain.Filter{Modality: domain.ModalityImage},
		}, nil

	case input == domain.ModalityImage && target == domain.ModalityImage:
		return Plan{
			Encoder:     r.clip,
			EncoderName: "clip",
			Indexes:     r.imageIndexes,
			Filter:      domain.Filter{Modality: domain.ModalityImage},
		}, nil

	default: // image -> text
		// Text candidates were embedded by the general text encoder, so CLIP
		// query vectors land in a foreign space with a different width.
		return Plan{
			Encoder:       r.clip,
			EncoderName:   "clip",
			Indexes:       r.textIndexes,
			Filter:        domain.Filter{Modality: domain.ModalityText},
			AllowTruncate: true,
			LowConfidence: true,
		}, nil
	}
}
