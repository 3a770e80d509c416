// Package importer drives the import of Strava activities into the
// content store: fetch, media sync, body build, categorization, metadata.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/content"
	"github.com/stravapress/server/pkg/fault"
	"github.com/stravapress/server/pkg/infrastructure/metrics"
	"github.com/stravapress/server/pkg/strava"
)

// ActivityAPI is the subset of the Strava client the importer needs.
type ActivityAPI interface {
	ListActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error)
	GetActivity(ctx context.Context, id string) (*strava.Activity, error)
	GetPhotos(ctx context.Context, id string) ([]strava.Photo, error)
}

// MediaSync reconciles and downloads activity photos for a document.
type MediaSync interface {
	CleanupOwnedAttachments(ctx context.Context, documentID int64) error
	SyncAll(ctx context.Context, photos []strava.Photo, documentID int64, activityTitle string) []shared.LocalPhoto
}

// Result describes a completed import.
type Result struct {
	DocumentID int64  `json:"document_id"`
	Title      string `json:"title"`
	EditURL    string `json:"edit_url"`
	ViewURL    string `json:"view_url"`
}

// ActivitySummary is one list entry, annotated with its import state.
type ActivitySummary struct {
	strava.Activity
	Imported   bool  `json:"imported"`
	DocumentID int64 `json:"document_id,omitempty"`
}

// Orchestrator runs imports end to end. It holds no per-import state and
// is safe for concurrent use; the store's external-id uniqueness is what
// keeps concurrent imports of the same activity from both succeeding.
type Orchestrator struct {
	api      ActivityAPI
	store    shared.ContentStore
	media    MediaSync
	settings shared.SettingsRepository
	logger   *slog.Logger
}

func NewOrchestrator(api ActivityAPI, store shared.ContentStore, media MediaSync, settings shared.SettingsRepository) *Orchestrator {
	return &Orchestrator{
		api:      api,
		store:    store,
		media:    media,
		settings: settings,
		logger:   slog.Default().With("component", "importer"),
	}
}

// Import imports one activity as a new document. Importing an activity
// that already has a document fails without touching anything.
func (o *Orchestrator) Import(ctx context.Context, activityID string) (*Result, error) {
	result, err := o.runImport(ctx, activityID)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("import", metrics.ResultFailure).Inc()
		return nil, err
	}
	metrics.ImportsTotal.WithLabelValues("import", metrics.ResultSuccess).Inc()
	return result, nil
}

func (o *Orchestrator) runImport(ctx context.Context, activityID string) (*Result, error) {
	existing, err := o.store.FindDocumentByExternalID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.New(fault.KindAlreadyImported,
			"activity %s already imported as document %d", activityID, existing.ID)
	}

	activity, err := o.api.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	status, author, err := o.importDefaults(ctx)
	if err != nil {
		return nil, err
	}

	// Body is filled in after the photo sync; attachment URLs are unknown
	// until the document exists.
	documentID, err := o.store.CreateDocument(ctx, shared.DocumentFields{
		Title:  activity.Name,
		Status: status,
		Author: author,
		Date:   localDate(activity.StartDateLocal),
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("Document created", "document_id", documentID, "activity_id", activityID)

	return o.materialize(ctx, activity, documentID)
}

// Reimport refreshes an existing imported document in place. The document
// must have been created by an import of the same activity.
func (o *Orchestrator) Reimport(ctx context.Context, documentID int64, activityID string) (*Result, error) {
	result, err := o.runReimport(ctx, documentID, activityID)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("reimport", metrics.ResultFailure).Inc()
		return nil, err
	}
	metrics.ImportsTotal.WithLabelValues("reimport", metrics.ResultSuccess).Inc()
	return result, nil
}

func (o *Orchestrator) runReimport(ctx context.Context, documentID int64, activityID string) (*Result, error) {
	document, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document.ExternalID != activityID {
		return nil, fault.New(fault.KindMismatch,
			"document %d was not imported from activity %s", documentID, activityID)
	}

	activity, err := o.api.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	// Title follows the source on re-import; status, author and date stay
	// whatever the user set them to.
	if err := o.store.UpdateDocument(ctx, documentID, shared.DocumentFields{Title: activity.Name}); err != nil {
		return nil, err
	}

	return o.materialize(ctx, activity, documentID)
}

// materialize runs the shared tail of import and re-import: photos, body,
// categories, metadata, links. Photo, category and featured-image failures
// degrade gracefully; body and metadata failures abort.
func (o *Orchestrator) materialize(ctx context.Context, activity *strava.Activity, documentID int64) (*Result, error) {
	photos := o.fetchPhotos(ctx, activity)

	if err := o.media.CleanupOwnedAttachments(ctx, documentID); err != nil {
		o.logger.Warn("Attachment cleanup failed", "document_id", documentID, "error", err)
	}
	local := o.media.SyncAll(ctx, photos, documentID, activity.Name)

	featuredID := int64(0)
	if len(local) > 0 {
		featuredID = local[0].AttachmentID
	}
	if err := o.store.SetFeaturedImage(ctx, documentID, featuredID); err != nil {
		o.logger.Warn("Failed to set featured image", "document_id", documentID, "error", err)
	}

	urls := make([]string, 0, len(local))
	for _, photo := range local {
		urls = append(urls, photo.URL)
	}
	body := content.Build(activity, urls)
	if err := o.store.UpdateDocument(ctx, documentID, shared.DocumentFields{Content: body}); err != nil {
		return nil, err
	}

	o.assignCategories(ctx, documentID, activity)

	// Metadata carries the external-id link that makes imports idempotent,
	// so a metadata failure fails the whole operation.
	if err := o.store.SetDocumentMetadata(ctx, documentID, activityMetadata(activity)); err != nil {
		return nil, err
	}

	editURL, viewURL, err := o.store.DocumentLinks(ctx, documentID)
	if err != nil {
		o.logger.Warn("Failed to resolve document links", "document_id", documentID, "error", err)
	}

	return &Result{
		DocumentID: documentID,
		Title:      activity.Name,
		EditURL:    editURL,
		ViewURL:    viewURL,
	}, nil
}

// fetchPhotos returns the activity's photos, or nil when it has none or
// the photo endpoint fails. Photo failures never abort an import.
func (o *Orchestrator) fetchPhotos(ctx context.Context, activity *strava.Activity) []strava.Photo {
	if activity.TotalPhotoCount <= 0 {
		return nil
	}
	photos, err := o.api.GetPhotos(ctx, activity.ExternalID())
	if err != nil {
		o.logger.Warn("Failed to fetch photos, importing without them",
			"activity_id", activity.ID, "error", err)
		return nil
	}
	return photos
}

func (o *Orchestrator) assignCategories(ctx context.Context, documentID int64, activity *strava.Activity) {
	parentID, err := o.store.ResolveOrCreateCategory(ctx, shared.CategoryParentName, 0)
	if err != nil {
		o.logger.Warn("Failed to resolve parent category", "error", err)
		return
	}

	categoryIDs := []int64{parentID}
	if sport := activity.SportKind(); sport != "" {
		sportID, err := o.store.ResolveOrCreateCategory(ctx, content.SportLabel(sport), parentID)
		if err != nil {
			o.logger.Warn("Failed to resolve sport category", "sport", sport, "error", err)
		} else {
			categoryIDs = append(categoryIDs, sportID)
		}
	}

	if err := o.store.SetDocumentCategories(ctx, documentID, categoryIDs); err != nil {
		o.logger.Warn("Failed to assign categories", "document_id", documentID, "error", err)
	}
}

// ListActivities returns one page of the athlete's activities annotated
// with whether each one is already imported.
func (o *Orchestrator) ListActivities(ctx context.Context, page, perPage int) ([]ActivitySummary, error) {
	activities, err := o.api.ListActivities(ctx, page, perPage)
	if err != nil {
		return nil, err
	}

	imported, err := o.store.ListExternalIDs(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ActivitySummary, 0, len(activities))
	for _, activity := range activities {
		summary := ActivitySummary{Activity: activity}
		if documentID, ok := imported[activity.ExternalID()]; ok {
			summary.Imported = true
			summary.DocumentID = documentID
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (o *Orchestrator) importDefaults(ctx context.Context) (status string, author int64, err error) {
	status, err = o.settings.Get(ctx, shared.OptionPostStatus)
	if err != nil {
		return "", 0, fault.Wrap(fault.KindStore, err, "could not read import defaults")
	}
	if status == "" {
		status = shared.DefaultPostStatus
	}

	authorRaw, err := o.settings.Get(ctx, shared.OptionPostAuthor)
	if err != nil {
		return "", 0, fault.Wrap(fault.KindStore, err, "could not read import defaults")
	}
	if authorRaw != "" {
		author, _ = strconv.ParseInt(authorRaw, 10, 64)
	}
	return status, author, nil
}

// activityMetadata flattens the activity into the document metadata map.
// Every value is a string; numeric fields keep their full precision.
func activityMetadata(activity *strava.Activity) map[string]string {
	meta := map[string]string{
		shared.MetaActivityID:    activity.ExternalID(),
		shared.MetaActivityURL:   "https://www.strava.com/activities/" + activity.ExternalID(),
		shared.MetaSportType:     activity.SportKind(),
		shared.MetaDistance:      formatFloat(activity.Distance),
		shared.MetaMovingTime:    strconv.Itoa(activity.MovingTime),
		shared.MetaElapsedTime:   strconv.Itoa(activity.ElapsedTime),
		shared.MetaElevationGain: formatFloat(activity.TotalElevationGain),
		shared.MetaAvgSpeed:      formatFloat(activity.AverageSpeed),
		shared.MetaMaxSpeed:      formatFloat(activity.MaxSpeed),
		shared.MetaAvgHeartrate:  formatFloat(activity.AverageHeartrate),
		shared.MetaMaxHeartrate:  formatFloat(activity.MaxHeartrate),
		shared.MetaCalories:      formatFloat(activity.Calories),
		shared.MetaKudosCount:    strconv.Itoa(activity.KudosCount),
		shared.MetaSufferScore:   formatFloat(activity.SufferScore),
	}

	if name := activity.GearName(); name != "" {
		meta[shared.MetaGear] = name
	}
	if len(activity.StartLatLng) == 2 {
		meta[shared.MetaStartLatLng] = fmt.Sprintf("%s,%s",
			formatFloat(activity.StartLatLng[0]), formatFloat(activity.StartLatLng[1]))
	}
	if polyline := activity.Polyline(); polyline != "" {
		meta[shared.MetaPolyline] = polyline
	}
	return meta
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// localDate converts the API's local timestamp ("2023-04-01T07:30:00Z",
// offset-less despite the Z) into the store's "2006-01-02 15:04:05" form.
func localDate(startDateLocal string) string {
	s := strings.TrimSuffix(startDateLocal, "Z")
	return strings.Replace(s, "T", " ", 1)
}
