package embedding

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kestrel-cloud/ragdex/internal/db"
	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// recordKey builds the hash key for an embedding record:
// <prefix>emb:<modality>:<id>.
func recordKey(prefix string, modality domain.Modality, id string) string {
	return fmt.Sprintf("%semb:%s:%s", prefix, modality, id)
}

// idFromKey extracts the record ID from a hash key. Returns false for keys
// outside the embedding namespace.
func idFromKey(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+"emb:")
	if !ok {
		return "", false
	}
	_, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// recordToHash flattens a record into the hash field layout the FT schema
// indexes. Metadata keys are stored under the meta_ prefix.
func recordToHash(rec domain.EmbeddingRecord) map[string]string {
	fields := map[string]string{
		db.FieldVector:    db.EncodeVector(rec.Vector),
		db.FieldModality:  string(rec.Modality),
		db.FieldModelID:   rec.ModelID,
		db.FieldRefID:     rec.RefID,
		db.FieldRefColl:   rec.RefCollection,
		db.FieldCreatedAt: strconv.FormatInt(rec.CreatedAt.Unix(), 10),
	}
	if rec.Content != "" {
		fields[db.FieldContent] = rec.Content
	}
	for k, v := range rec.Metadata {
		fields[db.MetaFieldPrefix+k] = v
	}
	return fields
}

// hashToRecord rebuilds a record from hash fields. Returns false when the
// key or the vector blob is malformed; such entries are skipped, not fatal.
func hashToRecord(prefix, key string, fields map[string]string) (domain.EmbeddingRecord, bool) {
	id, ok := idFromKey(prefix, key)
	if !ok {
		return domain.EmbeddingRecord{}, false
	}

	vec := db.DecodeVector(fields[db.FieldVector])
	if vec == nil {
		return domain.EmbeddingRecord{}, false
	}

	rec := domain.EmbeddingRecord{
		ID:            id,
		Vector:        vec,
		Modality:      domain.Modality(fields[db.FieldModality]),
		ModelID:       fields[db.FieldModelID],
		RefID:         fields[db.FieldRefID],
		RefCollection: fields[db.FieldRefColl],
		Content:       fields[db.FieldContent],
	}

	if raw := fields[db.FieldCreatedAt]; raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.CreatedAt = time.Unix(ts, 0).UTC()
		}
	}

	for k, v := range fields {
		name, isMeta := strings.CutPrefix(k, db.MetaFieldPrefix)
		if !isMeta {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string)
		}
		rec.Metadata[name] = v
	}

	return rec, true
}
