package db

import "testing"

func TestIndexDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     IndexDefinition
		wantErr bool
	}{
		{
			"valid",
			IndexDefinition{
				Name:     "idx",
				Prefixes: []string{"ragdex:emb:"},
				Fields:   []IndexField{{Name: "modality", Type: IndexFieldTag}},
			},
			false,
		},
		{"missing name", IndexDefinition{Prefixes: []string{"p:"}, Fields: []IndexField{{Name: "f"}}}, true},
		{"missing prefixes", IndexDefinition{Name: "idx", Fields: []IndexField{{Name: "f"}}}, true},
		{"no fields", IndexDefinition{Name: "idx", Prefixes: []string{"p:"}}, true},
		{
			"duplicate field",
			IndexDefinition{
				Name:     "idx",
				Prefixes: []string{"p:"},
				Fields:   []IndexField{{Name: "f"}, {Name: "f"}},
			},
			true,
		},
		{
			"vector without dim",
			IndexDefinition{
				Name:     "idx",
				Prefixes: []string{"p:"},
				Fields:   []IndexField{{Name: "vec", Type: IndexFieldVector}},
			},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingIndex_Schema(t *testing.T) {
	def := EmbeddingIndex("ragdex-text-idx", 384, VectorHNSW, 32, 400, "ragdex:emb:text:")

	if err := def.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var vec *IndexField
	names := make(map[string]bool)
	for i := range def.Fields {
		names[def.Fields[i].Name] = true
		if def.Fields[i].Type == IndexFieldVector {
			vec = &def.Fields[i]
		}
	}

	for _, want := range []string{FieldModality, FieldRefColl, FieldCreatedAt, FieldContent, FieldVector} {
		if !names[want] {
			t.Errorf("schema missing field %q", want)
		}
	}
	if vec == nil {
		t.Fatal("schema missing vector field")
	}
	if vec.VectorDim != 384 || vec.VectorAlgo != VectorHNSW || vec.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v, want dim 384 HNSW COSINE", vec)
	}
}
