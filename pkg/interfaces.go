package shared

import (
	"context"
)

// --- Persistence Interfaces ---

// SettingsRepository is the option store backing OAuth credentials and
// import defaults. Get returns "" (no error) for unset keys. SetMany writes
// all keys in a single transaction.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// --- Content Store Interfaces ---

// DocumentFields are the writable fields of a document. Zero-value fields
// are left unchanged on update.
type DocumentFields struct {
	Title   string
	Content string
	Status  string
	Author  int64
	Date    string // local time "2006-01-02 15:04:05"
}

// Document is a stored content entry.
type Document struct {
	ID         int64
	Title      string
	ExternalID string // imported activity id, "" when not importer-created
}

// Attachment is a media item owned by a document.
type Attachment struct {
	ID        int64
	URL       string
	SourceURL string // provenance tag value, "" when not importer-owned
}

// LocalPhoto is a remote photo materialized in the content store.
type LocalPhoto struct {
	AttachmentID int64
	URL          string
	SourceURL    string
}

// ContentStore is the document/media store documents are imported into.
type ContentStore interface {
	CreateDocument(ctx context.Context, fields DocumentFields) (int64, error)
	UpdateDocument(ctx context.Context, id int64, fields DocumentFields) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	FindDocumentByExternalID(ctx context.Context, externalID string) (*Document, error)
	// ListExternalIDs maps every imported activity id to its document id.
	ListExternalIDs(ctx context.Context) (map[string]int64, error)

	UploadMedia(ctx context.Context, data []byte, filename string, parentID int64, title string) (*Attachment, error)
	TagAttachment(ctx context.Context, attachmentID int64, key, value string) error
	ListAttachments(ctx context.Context, parentID int64) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID int64) error
	// SetFeaturedImage with attachmentID 0 clears the featured image.
	SetFeaturedImage(ctx context.Context, documentID, attachmentID int64) error

	ResolveOrCreateCategory(ctx context.Context, name string, parentID int64) (int64, error)
	SetDocumentCategories(ctx context.Context, documentID int64, categoryIDs []int64) error
	SetDocumentMetadata(ctx context.Context, documentID int64, meta map[string]string) error

	DocumentLinks(ctx context.Context, documentID int64) (editURL, viewURL string, err error)
}
