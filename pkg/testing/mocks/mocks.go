// Package mocks provides hand-rolled test doubles for the shared
// interfaces. Function fields override individual behaviors per test.
package mocks

import (
	"context"
	"sync"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/strava"
)

// MemorySettings is an in-memory SettingsRepository.
type MemorySettings struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySettings(seed map[string]string) *MemorySettings {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &MemorySettings{values: values}
}

func (m *MemorySettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemorySettings) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *MemorySettings) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

// MockContentStore implements shared.ContentStore with overridable
// function fields. Unset fields return zero values.
type MockContentStore struct {
	CreateDocumentFunc           func(ctx context.Context, fields shared.DocumentFields) (int64, error)
	UpdateDocumentFunc           func(ctx context.Context, id int64, fields shared.DocumentFields) error
	GetDocumentFunc              func(ctx context.Context, id int64) (*shared.Document, error)
	FindDocumentByExternalIDFunc func(ctx context.Context, externalID string) (*shared.Document, error)
	ListExternalIDsFunc          func(ctx context.Context) (map[string]int64, error)
	UploadMediaFunc              func(ctx context.Context, data []byte, filename string, parentID int64, title string) (*shared.Attachment, error)
	TagAttachmentFunc            func(ctx context.Context, attachmentID int64, key, value string) error
	ListAttachmentsFunc          func(ctx context.Context, parentID int64) ([]shared.Attachment, error)
	DeleteAttachmentFunc         func(ctx context.Context, attachmentID int64) error
	SetFeaturedImageFunc         func(ctx context.Context, documentID, attachmentID int64) error
	ResolveOrCreateCategoryFunc  func(ctx context.Context, name string, parentID int64) (int64, error)
	SetDocumentCategoriesFunc    func(ctx context.Context, documentID int64, categoryIDs []int64) error
	SetDocumentMetadataFunc      func(ctx context.Context, documentID int64, meta map[string]string) error
	DocumentLinksFunc            func(ctx context.Context, documentID int64) (string, string, error)
}

func (m *MockContentStore) CreateDocument(ctx context.Context, fields shared.DocumentFields) (int64, error) {
	if m.CreateDocumentFunc != nil {
		return m.CreateDocumentFunc(ctx, fields)
	}
	return 0, nil
}

func (m *MockContentStore) UpdateDocument(ctx context.Context, id int64, fields shared.DocumentFields) error {
	if m.UpdateDocumentFunc != nil {
		return m.UpdateDocumentFunc(ctx, id, fields)
	}
	return nil
}

func (m *MockContentStore) GetDocument(ctx context.Context, id int64) (*shared.Document, error) {
	if m.GetDocumentFunc != nil {
		return m.GetDocumentFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockContentStore) FindDocumentByExternalID(ctx context.Context, externalID string) (*shared.Document, error) {
	if m.FindDocumentByExternalIDFunc != nil {
		return m.FindDocumentByExternalIDFunc(ctx, externalID)
	}
	return nil, nil
}

func (m *MockContentStore) ListExternalIDs(ctx context.Context) (map[string]int64, error) {
	if m.ListExternalIDsFunc != nil {
		return m.ListExternalIDsFunc(ctx)
	}
	return map[string]int64{}, nil
}

func (m *MockContentStore) UploadMedia(ctx context.Context, data []byte, filename string, parentID int64, title string) (*shared.Attachment, error) {
	if m.UploadMediaFunc != nil {
		return m.UploadMediaFunc(ctx, data, filename, parentID, title)
	}
	return &shared.Attachment{}, nil
}

func (m *MockContentStore) TagAttachment(ctx context.Context, attachmentID int64, key, value string) error {
	if m.TagAttachmentFunc != nil {
		return m.TagAttachmentFunc(ctx, attachmentID, key, value)
	}
	return nil
}

func (m *MockContentStore) ListAttachments(ctx context.Context, parentID int64) ([]shared.Attachment, error) {
	if m.ListAttachmentsFunc != nil {
		return m.ListAttachmentsFunc(ctx, parentID)
	}
	return nil, nil
}

func (m *MockContentStore) DeleteAttachment(ctx context.Context, attachmentID int64) error {
	if m.DeleteAttachmentFunc != nil {
		return m.DeleteAttachmentFunc(ctx, attachmentID)
	}
	return nil
}

func (m *MockContentStore) SetFeaturedImage(ctx context.Context, documentID, attachmentID int64) error {
	if m.SetFeaturedImageFunc != nil {
		return m.SetFeaturedImageFunc(ctx, documentID, attachmentID)
	}
	return nil
}

func (m *MockContentStore) ResolveOrCreateCategory(ctx context.Context, name string, parentID int64) (int64, error) {
	if m.ResolveOrCreateCategoryFunc != nil {
		return m.ResolveOrCreateCategoryFunc(ctx, name, parentID)
	}
	return 0, nil
}

func (m *MockContentStore) SetDocumentCategories(ctx context.Context, documentID int64, categoryIDs []int64) error {
	if m.SetDocumentCategoriesFunc != nil {
		return m.SetDocumentCategoriesFunc(ctx, documentID, categoryIDs)
	}
	return nil
}

func (m *MockContentStore) SetDocumentMetadata(ctx context.Context, documentID int64, meta map[string]string) error {
	if m.SetDocumentMetadataFunc != nil {
		return m.SetDocumentMetadataFunc(ctx, documentID, meta)
	}
	return nil
}

func (m *MockContentStore) DocumentLinks(ctx context.Context, documentID int64) (string, string, error) {
	if m.DocumentLinksFunc != nil {
		return m.DocumentLinksFunc(ctx, documentID)
	}
	return "", "", nil
}

// MockActivityAPI implements the importer's Strava surface.
type MockActivityAPI struct {
	ListActivitiesFunc func(ctx context.Context, page, perPage int) ([]strava.Activity, error)
	GetActivityFunc    func(ctx context.Context, id string) (*strava.Activity, error)
	GetPhotosFunc      func(ctx context.Context, id string) ([]strava.Photo, error)
}

func (m *MockActivityAPI) ListActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error) {
	if m.ListActivitiesFunc != nil {
		return m.ListActivitiesFunc(ctx, page, perPage)
	}
	return nil, nil
}

func (m *MockActivityAPI) GetActivity(ctx context.Context, id string) (*strava.Activity, error) {
	if m.GetActivityFunc != nil {
		return m.GetActivityFunc(ctx, id)
	}
	return &strava.Activity{}, nil
}

func (m *MockActivityAPI) GetPhotos(ctx context.Context, id string) ([]strava.Photo, error) {
	if m.GetPhotosFunc != nil {
		return m.GetPhotosFunc(ctx, id)
	}
	return nil, nil
}

// MockMediaSync implements the importer's media surface.
type MockMediaSync struct {
	CleanupOwnedAttachmentsFunc func(ctx context.Context, documentID int64) error
	SyncAllFunc                 func(ctx context.Context, photos []strava.Photo, documentID int64, activityTitle string) []shared.LocalPhoto
}

func (m *MockMediaSync) CleanupOwnedAttachments(ctx context.Context, documentID int64) error {
	if m.CleanupOwnedAttachmentsFunc != nil {
		return m.CleanupOwnedAttachmentsFunc(ctx, documentID)
	}
	return nil
}

func (m *MockMediaSync) SyncAll(ctx context.Context, photos []strava.Photo, documentID int64, activityTitle string) []shared.LocalPhoto {
	if m.SyncAllFunc != nil {
		return m.SyncAllFunc(ctx, photos, documentID, activityTitle)
	}
	return nil
}
