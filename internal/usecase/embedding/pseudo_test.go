package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
	"testing"

	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// pseudoEmbedder produces deterministic hash-seeded vectors. It exists only
// as a test stand-in for a real encoder; no production path constructs one.
type pseudoEmbedder struct {
	dims int
}

func (p pseudoEmbedder) EmbedText(_ context.Context, text string) (domain.Embedding, error) {
	return pseudoEmbedding([]byte(text), p.dims), nil
}

func (p pseudoEmbedder) EmbedImage(_ context.Context, data []byte) (domain.Embedding, error) {
	return pseudoEmbedding(data, p.dims), nil
}

func pseudoEmbedding(seed []byte, dims int) domain.Embedding {
	h := fnv.New64a()
	_, _ = h.Write(seed)
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) //nolint:gosec // deterministic test vectors

	vec := make(domain.Vector, dims)
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
	}
	return domain.Embedding{Vector: vec, Dims: dims, ModelID: "pseudo"}
}

func TestPseudoEmbedder_Deterministic(t *testing.T) {
	p := pseudoEmbedder{dims: 8}

	a, err := p.EmbedText(context.Background(), "ibuprofen dosage")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := p.EmbedText(context.Background(), "ibuprofen dosage")
	c, _ := p.EmbedText(context.Background(), "paracetamol dosage")

	for i := range a.Vector {
		if a.Vector[i] != b.Vector[i] {
			t.Fatalf("same input produced different vectors at dim %d", i)
		}
	}

	same := true
	for i := range a.Vector {
		if a.Vector[i] != c.Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different inputs produced identical vectors")
	}
}

func TestPseudoEmbedder_BehindLazy(t *testing.T) {
	lazy := NewLazy(func(context.Context) (domain.CrossModalEmbedder, error) {
		return pseudoEmbedder{dims: 8}, nil
	})

	emb, err := lazy.EmbedText(context.Background(), "aspirin")
	if err != nil {
		t.Fatalf("EmbedText: %v", err)
	}
	if emb.Dims != 8 || emb.Vector.IsDegenerate() {
		t.Errorf("embedding = %+v", emb)
	}
}
