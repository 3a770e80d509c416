// Package media downloads remote activity photos into the content store
// and reconciles importer-owned attachments on re-import.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/fault"
	"github.com/stravapress/server/pkg/infrastructure/metrics"
	"github.com/stravapress/server/pkg/strava"
)

// Synchronizer materializes remote photos as local attachments.
type Synchronizer struct {
	store  shared.ContentStore
	client *http.Client
	logger *slog.Logger
}

func NewSynchronizer(store shared.ContentStore) *Synchronizer {
	return &Synchronizer{
		store:  store,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: slog.Default().With("component", "media-sync"),
	}
}

// ResolveBestURL selects the URL with the numerically-largest resolution
// key, falling back to the flat url field. Returns "" when the photo has
// no usable URL; callers skip such photos rather than failing.
func ResolveBestURL(photo strava.Photo) string {
	if len(photo.Urls) > 0 {
		keys := make([]string, 0, len(photo.Urls))
		for key := range photo.Urls {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.ParseFloat(keys[i], 64)
			b, errB := strconv.ParseFloat(keys[j], 64)
			if errA != nil || errB != nil {
				return keys[i] > keys[j]
			}
			return a > b
		})
		for _, key := range keys {
			if photo.Urls[key] != "" {
				return photo.Urls[key]
			}
		}
	}
	return photo.URL
}

// DownloadAndStore fetches one photo, stores it as an attachment under
// documentID and tags it with its source URL for later reconciliation.
func (s *Synchronizer) DownloadAndStore(ctx context.Context, imageURL string, documentID int64, title string) (*shared.LocalPhoto, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, fault.Wrap(fault.KindDownloadFailed, err, "failed to create photo request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindDownloadFailed, err, "photo download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.New(fault.KindDownloadFailed, "photo download failed").WithStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindDownloadFailed, err, "failed to read photo body")
	}
	if len(data) == 0 {
		return nil, fault.New(fault.KindDownloadFailed, "photo download returned empty body")
	}

	filename := fmt.Sprintf("strava-%d-%s%s", documentID, uuid.NewString(), imageExtension(data, imageURL))

	attachment, err := s.store.UploadMedia(ctx, data, filename, documentID, title)
	if err != nil {
		return nil, err
	}

	if err := s.store.TagAttachment(ctx, attachment.ID, shared.MetaSourceURL, imageURL); err != nil {
		return nil, err
	}

	return &shared.LocalPhoto{
		AttachmentID: attachment.ID,
		URL:          attachment.URL,
		SourceURL:    imageURL,
	}, nil
}

// SyncAll downloads every resolvable photo sequentially. Individual
// failures are logged and skipped; successes come back in original order.
// Titles are numbered over attempted photos only.
func (s *Synchronizer) SyncAll(ctx context.Context, photos []strava.Photo, documentID int64, activityTitle string) []shared.LocalPhoto {
	var local []shared.LocalPhoto

	attempt := 0
	for _, photo := range photos {
		imageURL := ResolveBestURL(photo)
		if imageURL == "" {
			continue
		}
		attempt++

		title := fmt.Sprintf("%s - Photo %d", activityTitle, attempt)
		photoRecord, err := s.DownloadAndStore(ctx, imageURL, documentID, title)
		if err != nil {
			metrics.PhotoDownloadsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			s.logger.Warn("Photo sync failed, skipping",
				"document_id", documentID, "url", imageURL, "error", err)
			continue
		}

		metrics.PhotoDownloadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		local = append(local, *photoRecord)
	}

	return local
}

// CleanupOwnedAttachments deletes every attachment under documentID that
// carries the importer's provenance tag. Untagged attachments belong to
// the user and are never touched. Runs before SyncAll on re-import so
// stale media never survives alongside freshly fetched media.
func (s *Synchronizer) CleanupOwnedAttachments(ctx context.Context, documentID int64) error {
	attachments, err := s.store.ListAttachments(ctx, documentID)
	if err != nil {
		return err
	}

	for _, attachment := range attachments {
		if attachment.SourceURL == "" {
			continue
		}
		if err := s.store.DeleteAttachment(ctx, attachment.ID); err != nil {
			s.logger.Warn("Failed to delete stale attachment",
				"document_id", documentID, "attachment_id", attachment.ID, "error", err)
		}
	}
	return nil
}

// imageExtension detects the image format from content bytes, falling
// back to the URL extension, then .jpg. The URL extension is never
// trusted when sniffing succeeds.
func imageExtension(data []byte, imageURL string) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}

	if u, err := url.Parse(imageURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".jpg", ".jpeg", ".png", ".gif", ".webp":
			return ext
		}
	}
	return ".jpg"
}
