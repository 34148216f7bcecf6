// Package source reads the documents and images that embedding records point
// at. The engine never writes through this path at query time; entities are
// owned by the ingestion side.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kestrel-cloud/ragdex/internal/db"
	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// store is the consumer interface for source entities (ISP).
type store interface {
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONSet(ctx context.Context, key, path string, data []byte) error
}

// Repo implements usecase reference resolution.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a source entity repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Resolve looks up the entity an embedding record references. A missing
// entity or an unknown collection resolves to nil, never an error: reference
// resolution must not abort a search.
func (r *Repo) Resolve(ctx context.Context, rec domain.EmbeddingRecord) (domain.SourceEntity, error) {
	switch rec.RefCollection {
	case domain.CollectionDocuments:
		return r.getDocument(ctx, rec.RefID)
	case domain.CollectionImages:
		return r.getImage(ctx, rec.RefID)
	default:
		return nil, nil
	}
}

func (r *Repo) getDocument(ctx context.Context, id string) (domain.SourceEntity, error) {
	raw, err := r.store.JSONGet(ctx, r.docKey(id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("json.get document %s: %w", id, err)
	}

	doc, err := parseEntity[domain.Document](raw)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", id, err)
	}
	doc.ID = id
	return doc, nil
}

func (r *Repo) getImage(ctx context.Context, id string) (domain.SourceEntity, error) {
	raw, err := r.store.JSONGet(ctx, r.imgKey(id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("json.get image %s: %w", id, err)
	}

	img, err := parseEntity[domain.Image](raw)
	if err != nil {
		return nil, fmt.Errorf("parse image %s: %w", id, err)
	}
	img.ID = id
	return img, nil
}

// PutDocument writes a document. Ingestion-side only.
func (r *Repo) PutDocument(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := r.store.JSONSet(ctx, r.docKey(doc.ID), "$", data); err != nil {
		return fmt.Errorf("json.set document %s: %w", doc.ID, err)
	}
	return nil
}

// PutImage writes an image. Ingestion-side only.
func (r *Repo) PutImage(ctx context.Context, img *domain.Image) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("marshal image: %w", err)
	}
	if err := r.store.JSONSet(ctx, r.imgKey(img.ID), "$", data); err != nil {
		return fmt.Errorf("json.set image %s: %w", img.ID, err)
	}
	return nil
}

func (r *Repo) docKey(id string) string { return r.keyPrefix + "doc:" + id }
func (r *Repo) imgKey(id string) string { return r.keyPrefix + "img:" + id }

// parseEntity unmarshals a JSON.GET payload, unwrapping the $-path array form
// when present.
func parseEntity[T any](raw []byte) (*T, error) {
	var arr []T
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return &arr[0], nil
	}

	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err //nolint:wrapcheck // callers add entity context
	}
	return &one, nil
}
