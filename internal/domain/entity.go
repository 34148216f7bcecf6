package domain

// SourceEntity is a document or image owned by the external source store.
// The engine only ever reads entities by id.
type SourceEntity interface {
	EntityID() string
	EntityTitle() string
	EntityCollection() string
}

// Document is a textual source entity.
type Document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Language string            `json:"language,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EntityID implements SourceEntity.
func (d *Document) EntityID() string { return d.ID }

// EntityTitle implements SourceEntity.
func (d *Document) EntityTitle() string { return d.Title }

// EntityCollection implements SourceEntity.
func (d *Document) EntityCollection() string { return CollectionDocuments }

// Image is a pictorial source entity.
type Image struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EntityID implements SourceEntity.
func (i *Image) EntityID() string { return i.ID }

// EntityTitle implements SourceEntity.
func (i *Image) EntityTitle() string { return i.Title }

// EntityCollection implements SourceEntity.
func (i *Image) EntityCollection() string { return CollectionImages }
