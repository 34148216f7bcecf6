package route

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// stubEmbedder is a distinguishable no-op encoder.
type stubEmbedder struct{ name string }

func (s *stubEmbedder) EmbedText(context.Context, string) (domain.Embedding, error) {
	return domain.Embedding{ModelID: s.name}, nil
}

func (s *stubEmbedder) EmbedImage(context.Context, []byte) (domain.Embedding, error) {
	return domain.Embedding{ModelID: s.name}, nil
}

func newTestRouter() (*Router, *stubEmbedder, *stubEmbedder) {
	text := &stubEmbedder{name: "text-encoder"}
	clip := &stubEmbedder{name: "clip-encoder"}
	r := New(text, clip,
		[]string{"ragdex-text-idx", "ragdex-idx"},
		[]string{"ragdex-image-idx", "ragdex-idx"},
	)
	return r, text, clip
}

func TestPlan_Routing(t *testing.T) {
	router, text, clip := newTestRouter()

	tests := []struct {
		name          string
		input, target domain.Modality
		wantEncoder   domain.CrossModalEmbedder
		wantIndex     string
		wantModality  domain.Modality
		wantTruncate  bool
		wantLowConf   bool
	}{
		{
			name:  "text to text uses text encoder",
			input: domain.ModalityText, target: domain.ModalityText,
			wantEncoder: text, wantIndex: "ragdex-text-idx", wantModality: domain.ModalityText,
		},
		{
			name:  "text to image uses clip text tower",
			input: domain.ModalityText, target: domain.ModalityImage,
			wantEncoder: clip, wantIndex: "ragdex-image-idx", wantModality: domain.ModalityImage,
		},
		{
			name:  "image to image uses clip",
			input: domain.ModalityImage, target: domain.ModalityImage,
			wantEncoder: clip, wantIndex: "ragdex-image-idx", wantModality: domain.ModalityImage,
		},
		{
			name:  "image to text crosses encoder families",
			input: domain.ModalityImage, target: domain.ModalityText,
			wantEncoder: clip, wantIndex: "ragdex-text-idx", wantModality: domain.ModalityText,
			wantTruncate: true, wantLowConf: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := router.Plan(tt.input, tt.target)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if plan.Encoder != tt.wantEncoder {
				t.Errorf("Encoder = %v, want %v", plan.Encoder, tt.wantEncoder)
			}
			if len(plan.Indexes) == 0 || plan.Indexes[0] != tt.wantIndex {
				t.Errorf("Indexes = %v, want %q first", plan.Indexes, tt.wantIndex)
			}
			if plan.Filter.Modality != tt.wantModality {
				t.Errorf("Filter.Modality = %q, want %q", plan.Filter.Modality, tt.wantModality)
			}
			if plan.AllowTruncate != tt.wantTruncate {
				t.Errorf("AllowTruncate = %v, want %v", plan.AllowTruncate, tt.wantTruncate)
			}
			if plan.LowConfidence != tt.wantLowConf {
				t.Errorf("LowConfidence = %v, want %v", plan.LowConfidence, tt.wantLowConf)
			}
		})
	}
}

func TestPlan_InvalidModality(t *testing.T) {
	router, _, _ := newTestRouter()

	if _, err := router.Plan("audio", domain.ModalityText); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want domain.ErrValidation", err)
	}
	if _, err := router.Plan(domain.ModalityText, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want domain.ErrValidation", err)
	}
}
