package domain

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestCosine_SelfIsOne(t *testing.T) {
	v := Vector{0.3, -1.2, 4.5, 0.01}
	got, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 1.0) {
		t.Errorf("cosine(v, v) = %v, want 1.0", got)
	}
}

func TestCosine_NegatedIsMinusOne(t *testing.T) {
	v := Vector{1, 2, 3}
	neg := Vector{-1, -2, -3}
	got, err := Cosine(v, neg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, -1.0) {
		t.Errorf("cosine(v, -v) = %v, want -1.0", got)
	}
}

func TestCosine_OrthogonalIsZero(t *testing.T) {
	got, err := Cosine(Vector{1, 0, 0}, Vector{0, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 0) {
		t.Errorf("cosine of orthogonal vectors = %v, want 0", got)
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := Vector{0.5, -0.2, 0.9}
	b := Vector{-0.1, 0.7, 0.3}
	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(ab, ba) {
		t.Errorf("cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosine_ZeroNormIsZero(t *testing.T) {
	got, err := Cosine(Vector{0, 0, 0}, Vector{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("cosine with zero vector = %v, want 0", got)
	}
	if math.IsNaN(got) {
		t.Error("cosine with zero vector must not be NaN")
	}
}

func TestCosine_DimMismatch(t *testing.T) {
	_, err := Cosine(Vector{1, 2}, Vector{1, 2, 3})
	if !errors.Is(err, ErrDimMismatch) {
		t.Fatalf("expected ErrDimMismatch, got %v", err)
	}
	var dimErr *DimMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatal("expected *DimMismatchError")
	}
	if dimErr.LenA != 2 || dimErr.LenB != 3 {
		t.Errorf("lengths = %d/%d, want 2/3", dimErr.LenA, dimErr.LenB)
	}
}

func TestCosineTruncated_CommonPrefix(t *testing.T) {
	a := Vector{1, 2, 3, 4, 5}
	b := Vector{5, 4, 3}

	got, truncated := CosineTruncated(a, b)
	if !truncated {
		t.Error("expected truncated flag")
	}

	want, err := Cosine(a[:3], b[:3])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, want) {
		t.Errorf("truncated cosine = %v, want %v (cosine of first 3 components)", got, want)
	}
}

func TestCosineTruncated_EqualLengthsNotFlagged(t *testing.T) {
	got, truncated := CosineTruncated(Vector{1, 0}, Vector{1, 0})
	if truncated {
		t.Error("equal-length vectors must not be flagged truncated")
	}
	if !almostEqual(got, 1.0) {
		t.Errorf("score = %v, want 1.0", got)
	}
}

func TestVector_IsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want bool
	}{
		{"all near zero", Vector{0.001, -0.002, 0.0001}, true},
		{"one real component", Vector{0.001, 0.5, 0.0001}, false},
		{"empty", Vector{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsDegenerate(); got != tt.want {
				t.Errorf("IsDegenerate() = %v, want %v", got, tt.want)
			}
		})
	}
}
