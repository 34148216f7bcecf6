package db

import (
	"errors"
	"strconv"
)

// DistanceMetric used by FT vector fields.
type DistanceMetric string

const (
	// DistanceCosine is cosine distance.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceL2 is Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
)

// VectorAlgorithm selects the vector indexing algorithm.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW graph algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses brute-force scanning.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT field types.
type IndexFieldType int

const (
	// IndexFieldTag is an exact-match tag field.
	IndexFieldTag IndexFieldType = iota
	// IndexFieldNumeric is a numeric range field.
	IndexFieldNumeric
	// IndexFieldText is a full-text (BM25) field.
	IndexFieldText
	// IndexFieldVector is a KNN vector field.
	IndexFieldVector
)

// IndexField describes one field in an FT index schema. Records are stored as
// hashes, so every field maps directly to a hash field name.
type IndexField struct {
	Name string
	Type IndexFieldType

	// VECTOR options
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// IndexDefinition is a complete FT index definition.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks the definition is well-formed before FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if len(idx.Prefixes) == 0 {
		return errors.New("at least one key prefix is required")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return errors.New("vector field requires positive DIM")
		}
	}
	return nil
}

// EmbeddingIndex builds the standard FT definition for an embedding record
// index over the given key prefixes.
func EmbeddingIndex(name string, dim int, algo VectorAlgorithm, m, efConstruct int, prefixes ...string) *IndexDefinition {
	return &IndexDefinition{
		Name:     name,
		Prefixes: prefixes,
		Fields: []IndexField{
			{Name: FieldModality, Type: IndexFieldTag},
			{Name: FieldRefColl, Type: IndexFieldTag},
			{Name: FieldModelID, Type: IndexFieldTag},
			{Name: FieldCreatedAt, Type: IndexFieldNumeric},
			{Name: FieldContent, Type: IndexFieldText},
			{
				Name:              FieldVector,
				Type:              IndexFieldVector,
				VectorAlgo:        algo,
				VectorDim:         dim,
				VectorDistance:    DistanceCosine,
				VectorM:           m,
				VectorEFConstruct: efConstruct,
			},
		},
	}
}
