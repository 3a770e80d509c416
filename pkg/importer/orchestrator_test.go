package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/fault"
	"github.com/stravapress/server/pkg/strava"
	"github.com/stravapress/server/pkg/testing/mocks"
)

func morningRun() *strava.Activity {
	return &strava.Activity{
		ID:              13579,
		Name:            "Morning Run",
		SportType:       "Run",
		Distance:        5000,
		MovingTime:      1500,
		ElapsedTime:     1600,
		AverageSpeed:    3.333,
		TotalPhotoCount: 2,
		StartDateLocal:  "2023-04-01T07:30:00Z",
	}
}

func TestImportAlreadyImported(t *testing.T) {
	store := &mocks.MockContentStore{
		FindDocumentByExternalIDFunc: func(_ context.Context, externalID string) (*shared.Document, error) {
			return &shared.Document{ID: 42, ExternalID: externalID}, nil
		},
	}
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) {
			t.Fatal("activity should not be fetched")
			return nil, nil
		},
	}
	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))

	_, err := orchestrator.Import(context.Background(), "13579")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindAlreadyImported))
	assert.Contains(t, err.Error(), "42")
}

func TestImportDetailFetchFailureAborts(t *testing.T) {
	created := false
	store := &mocks.MockContentStore{
		CreateDocumentFunc: func(context.Context, shared.DocumentFields) (int64, error) {
			created = true
			return 1, nil
		},
	}
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) {
			return nil, fault.New(fault.KindAPI, "Record Not Found")
		},
	}
	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))

	_, err := orchestrator.Import(context.Background(), "13579")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindAPI))
	assert.False(t, created)
}

func TestImportEndToEnd(t *testing.T) {
	var createdFields shared.DocumentFields
	var updates []shared.DocumentFields
	var metadata map[string]string
	var categories []int64
	var featuredID int64 = -1
	cleanedUp := false

	store := &mocks.MockContentStore{
		CreateDocumentFunc: func(_ context.Context, fields shared.DocumentFields) (int64, error) {
			createdFields = fields
			return 101, nil
		},
		UpdateDocumentFunc: func(_ context.Context, id int64, fields shared.DocumentFields) error {
			assert.Equal(t, int64(101), id)
			updates = append(updates, fields)
			return nil
		},
		SetFeaturedImageFunc: func(_ context.Context, documentID, attachmentID int64) error {
			featuredID = attachmentID
			return nil
		},
		ResolveOrCreateCategoryFunc: func(_ context.Context, name string, parentID int64) (int64, error) {
			if name == shared.CategoryParentName {
				return 7, nil
			}
			assert.Equal(t, "Run", name)
			assert.Equal(t, int64(7), parentID)
			return 8, nil
		},
		SetDocumentCategoriesFunc: func(_ context.Context, _ int64, ids []int64) error {
			categories = ids
			return nil
		},
		SetDocumentMetadataFunc: func(_ context.Context, _ int64, meta map[string]string) error {
			metadata = meta
			return nil
		},
		DocumentLinksFunc: func(context.Context, int64) (string, string, error) {
			return "https://cms.example/wp-admin/post.php?post=101&action=edit", "https://cms.example/?p=101", nil
		},
	}
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(_ context.Context, id string) (*strava.Activity, error) {
			assert.Equal(t, "13579", id)
			return morningRun(), nil
		},
		GetPhotosFunc: func(context.Context, string) ([]strava.Photo, error) {
			return []strava.Photo{{URL: "https://photos.example/a.jpg"}}, nil
		},
	}
	media := &mocks.MockMediaSync{
		CleanupOwnedAttachmentsFunc: func(_ context.Context, documentID int64) error {
			cleanedUp = true
			assert.Equal(t, int64(101), documentID)
			return nil
		},
		SyncAllFunc: func(_ context.Context, photos []strava.Photo, documentID int64, title string) []shared.LocalPhoto {
			assert.Len(t, photos, 1)
			assert.Equal(t, "Morning Run", title)
			return []shared.LocalPhoto{{AttachmentID: 55, URL: "https://cms.example/uploads/a.jpg"}}
		},
	}
	settings := mocks.NewMemorySettings(map[string]string{
		shared.OptionPostStatus: "publish",
		shared.OptionPostAuthor: "3",
	})

	orchestrator := NewOrchestrator(api, store, media, settings)
	result, err := orchestrator.Import(context.Background(), "13579")

	require.NoError(t, err)
	assert.Equal(t, int64(101), result.DocumentID)
	assert.Equal(t, "Morning Run", result.Title)
	assert.Equal(t, "https://cms.example/wp-admin/post.php?post=101&action=edit", result.EditURL)
	assert.Equal(t, "https://cms.example/?p=101", result.ViewURL)

	assert.Equal(t, "Morning Run", createdFields.Title)
	assert.Equal(t, "publish", createdFields.Status)
	assert.Equal(t, int64(3), createdFields.Author)
	assert.Equal(t, "2023-04-01 07:30:00", createdFields.Date)

	assert.True(t, cleanedUp)
	assert.Equal(t, int64(55), featuredID)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Content, "https://cms.example/uploads/a.jpg")
	assert.Equal(t, []int64{7, 8}, categories)
	assert.Equal(t, "13579", metadata[shared.MetaActivityID])
	assert.Equal(t, "https://www.strava.com/activities/13579", metadata[shared.MetaActivityURL])
	assert.Equal(t, "5000", metadata[shared.MetaDistance])
}

func TestImportDefaultsWhenSettingsUnset(t *testing.T) {
	var createdFields shared.DocumentFields
	store := &mocks.MockContentStore{
		CreateDocumentFunc: func(_ context.Context, fields shared.DocumentFields) (int64, error) {
			createdFields = fields
			return 1, nil
		},
	}
	activity := morningRun()
	activity.TotalPhotoCount = 0
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) { return activity, nil },
	}

	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))
	_, err := orchestrator.Import(context.Background(), "13579")

	require.NoError(t, err)
	assert.Equal(t, shared.DefaultPostStatus, createdFields.Status)
	assert.Equal(t, int64(0), createdFields.Author)
}

func TestImportPhotoFailureDegrades(t *testing.T) {
	store := &mocks.MockContentStore{
		CreateDocumentFunc: func(context.Context, shared.DocumentFields) (int64, error) { return 1, nil },
	}
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) { return morningRun(), nil },
		GetPhotosFunc: func(context.Context, string) ([]strava.Photo, error) {
			return nil, fault.New(fault.KindAPI, "Too Many Requests").WithStatus(429)
		},
	}
	var synced []strava.Photo
	media := &mocks.MockMediaSync{
		SyncAllFunc: func(_ context.Context, photos []strava.Photo, _ int64, _ string) []shared.LocalPhoto {
			synced = photos
			return nil
		},
	}

	orchestrator := NewOrchestrator(api, store, media, mocks.NewMemorySettings(nil))
	result, err := orchestrator.Import(context.Background(), "13579")

	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, synced)
}

func TestImportMetadataFailureIsFatal(t *testing.T) {
	store := &mocks.MockContentStore{
		CreateDocumentFunc: func(context.Context, shared.DocumentFields) (int64, error) { return 1, nil },
		SetDocumentMetadataFunc: func(context.Context, int64, map[string]string) error {
			return fault.New(fault.KindStore, "meta write rejected")
		},
	}
	activity := morningRun()
	activity.TotalPhotoCount = 0
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) { return activity, nil },
	}

	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))
	_, err := orchestrator.Import(context.Background(), "13579")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindStore))
}

func TestReimportMismatch(t *testing.T) {
	store := &mocks.MockContentStore{
		GetDocumentFunc: func(_ context.Context, id int64) (*shared.Document, error) {
			return &shared.Document{ID: id, ExternalID: "99999"}, nil
		},
	}
	orchestrator := NewOrchestrator(&mocks.MockActivityAPI{}, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))

	_, err := orchestrator.Reimport(context.Background(), 101, "13579")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindMismatch))
}

func TestReimportRefusesForeignDocument(t *testing.T) {
	store := &mocks.MockContentStore{
		GetDocumentFunc: func(_ context.Context, id int64) (*shared.Document, error) {
			return &shared.Document{ID: id, ExternalID: ""}, nil
		},
	}
	orchestrator := NewOrchestrator(&mocks.MockActivityAPI{}, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))

	_, err := orchestrator.Reimport(context.Background(), 101, "13579")

	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindMismatch))
}

func TestReimportUpdatesInPlace(t *testing.T) {
	var titles []string
	created := false
	cleanedUp := false

	store := &mocks.MockContentStore{
		GetDocumentFunc: func(_ context.Context, id int64) (*shared.Document, error) {
			return &shared.Document{ID: id, Title: "Old Title", ExternalID: "13579"}, nil
		},
		CreateDocumentFunc: func(context.Context, shared.DocumentFields) (int64, error) {
			created = true
			return 0, errors.New("must not create")
		},
		UpdateDocumentFunc: func(_ context.Context, id int64, fields shared.DocumentFields) error {
			assert.Equal(t, int64(101), id)
			if fields.Title != "" {
				titles = append(titles, fields.Title)
			}
			return nil
		},
	}
	activity := morningRun()
	activity.TotalPhotoCount = 0
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) { return activity, nil },
	}
	media := &mocks.MockMediaSync{
		CleanupOwnedAttachmentsFunc: func(context.Context, int64) error {
			cleanedUp = true
			return nil
		},
	}

	orchestrator := NewOrchestrator(api, store, media, mocks.NewMemorySettings(nil))
	result, err := orchestrator.Reimport(context.Background(), 101, "13579")

	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, cleanedUp)
	assert.Equal(t, []string{"Morning Run"}, titles)
	assert.Equal(t, int64(101), result.DocumentID)
}

func TestReimportClearsFeaturedImageWithoutPhotos(t *testing.T) {
	var featuredID int64 = -1
	store := &mocks.MockContentStore{
		GetDocumentFunc: func(_ context.Context, id int64) (*shared.Document, error) {
			return &shared.Document{ID: id, ExternalID: "13579"}, nil
		},
		SetFeaturedImageFunc: func(_ context.Context, _, attachmentID int64) error {
			featuredID = attachmentID
			return nil
		},
	}
	activity := morningRun()
	activity.TotalPhotoCount = 0
	api := &mocks.MockActivityAPI{
		GetActivityFunc: func(context.Context, string) (*strava.Activity, error) { return activity, nil },
	}

	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))
	_, err := orchestrator.Reimport(context.Background(), 101, "13579")

	require.NoError(t, err)
	assert.Equal(t, int64(0), featuredID)
}

func TestListActivitiesAnnotatesImported(t *testing.T) {
	api := &mocks.MockActivityAPI{
		ListActivitiesFunc: func(_ context.Context, page, perPage int) ([]strava.Activity, error) {
			assert.Equal(t, 2, page)
			assert.Equal(t, 30, perPage)
			return []strava.Activity{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}, nil
		},
	}
	store := &mocks.MockContentStore{
		ListExternalIDsFunc: func(context.Context) (map[string]int64, error) {
			return map[string]int64{"2": 77}, nil
		},
	}

	orchestrator := NewOrchestrator(api, store, &mocks.MockMediaSync{}, mocks.NewMemorySettings(nil))
	summaries, err := orchestrator.ListActivities(context.Background(), 2, 30)

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.False(t, summaries[0].Imported)
	assert.True(t, summaries[1].Imported)
	assert.Equal(t, int64(77), summaries[1].DocumentID)
}

func TestLocalDate(t *testing.T) {
	assert.Equal(t, "2023-04-01 07:30:00", localDate("2023-04-01T07:30:00Z"))
	assert.Equal(t, "2023-04-01 07:30:00", localDate("2023-04-01T07:30:00"))
}
