// Package wordpress implements the content store against the WordPress
// REST API (wp/v2) using application-password authentication.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/fault"
	httputil "github.com/stravapress/server/pkg/infrastructure/http"
)

const perPage = 100

// Client is a WordPress REST API content-store client.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(baseURL, username, appPassword string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: appPassword,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default().With("component", "wordpress"),
	}
}

type renderedText struct {
	Rendered string `json:"rendered"`
	Raw      string `json:"raw"`
}

func (t renderedText) value() string {
	if t.Raw != "" {
		return t.Raw
	}
	return t.Rendered
}

type post struct {
	ID            int64                  `json:"id"`
	Link          string                 `json:"link"`
	Title         renderedText           `json:"title"`
	Meta          map[string]interface{} `json:"meta"`
	FeaturedMedia int64                  `json:"featured_media"`
}

type mediaItem struct {
	ID        int64                  `json:"id"`
	SourceURL string                 `json:"source_url"`
	Meta      map[string]interface{} `json:"meta"`
}

type category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Parent int64  `json:"parent"`
}

// doJSON performs a JSON request against the wp/v2 namespace.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fault.Wrap(fault.KindStore, err, "failed to encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	reqURL := c.baseURL + "/wp-json/wp/v2" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fault.Wrap(fault.KindStore, err, "failed to create request")
	}
	req.SetBasicAuth(c.username, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindStore, err, "content store request failed")
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return c.storeError(err)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fault.Wrap(fault.KindStore, err, "failed to decode content store response")
		}
	}
	return nil
}

func (c *Client) storeError(err error) error {
	if httpErr, ok := err.(*httputil.HTTPError); ok {
		message := httputil.MessageFromJSON([]byte(httpErr.Body))
		if message == "" {
			message = "content store request failed"
		}
		return fault.Wrap(fault.KindStore, err, "%s", message).WithStatus(httpErr.StatusCode)
	}
	return fault.Wrap(fault.KindStore, err, "content store request failed")
}

// --- Documents ---

func (c *Client) CreateDocument(ctx context.Context, fields shared.DocumentFields) (int64, error) {
	payload := documentPayload(fields)
	if _, ok := payload["status"]; !ok {
		payload["status"] = shared.DefaultPostStatus
	}

	var created post
	if err := c.doJSON(ctx, "POST", "/posts", nil, payload, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) UpdateDocument(ctx context.Context, id int64, fields shared.DocumentFields) error {
	payload := documentPayload(fields)
	if len(payload) == 0 {
		return nil
	}
	return c.doJSON(ctx, "POST", fmt.Sprintf("/posts/%d", id), nil, payload, nil)
}

func documentPayload(fields shared.DocumentFields) map[string]interface{} {
	payload := map[string]interface{}{}
	if fields.Title != "" {
		payload["title"] = fields.Title
	}
	if fields.Content != "" {
		payload["content"] = fields.Content
	}
	if fields.Status != "" {
		payload["status"] = fields.Status
	}
	if fields.Author != 0 {
		payload["author"] = fields.Author
	}
	if fields.Date != "" {
		payload["date"] = fields.Date
	}
	return payload
}

func (c *Client) GetDocument(ctx context.Context, id int64) (*shared.Document, error) {
	var p post
	query := url.Values{"context": {"edit"}}
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/posts/%d", id), query, nil, &p); err != nil {
		return nil, err
	}
	return c.toDocument(&p), nil
}

func (c *Client) FindDocumentByExternalID(ctx context.Context, externalID string) (*shared.Document, error) {
	query := url.Values{
		"meta_key":   {shared.MetaActivityID},
		"meta_value": {externalID},
		"status":     {"publish,future,draft,pending,private"},
		"context":    {"edit"},
		"per_page":   {"1"},
	}

	var posts []post
	if err := c.doJSON(ctx, "GET", "/posts", query, nil, &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return c.toDocument(&posts[0]), nil
}

func (c *Client) ListExternalIDs(ctx context.Context) (map[string]int64, error) {
	ids := make(map[string]int64)

	for page := 1; ; page++ {
		query := url.Values{
			"meta_key": {shared.MetaActivityID},
			"status":   {"publish,future,draft,pending,private"},
			"context":  {"edit"},
			"per_page": {fmt.Sprintf("%d", perPage)},
			"page":     {fmt.Sprintf("%d", page)},
		}

		var posts []post
		if err := c.doJSON(ctx, "GET", "/posts", query, nil, &posts); err != nil {
			// Past-the-end pages come back as an error, not an empty list.
			if page > 1 && fault.KindOf(err) == fault.KindStore {
				break
			}
			return nil, err
		}

		for i := range posts {
			doc := c.toDocument(&posts[i])
			if doc.ExternalID != "" {
				ids[doc.ExternalID] = doc.ID
			}
		}

		if len(posts) < perPage {
			break
		}
	}

	return ids, nil
}

func (c *Client) toDocument(p *post) *shared.Document {
	return &shared.Document{
		ID:         p.ID,
		Title:      p.Title.value(),
		ExternalID: metaString(p.Meta, shared.MetaActivityID),
	}
}

// --- Media ---

func (c *Client) UploadMedia(ctx context.Context, data []byte, filename string, parentID int64, title string) (*shared.Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return nil, fault.Wrap(fault.KindStore, err, "failed to create media request")
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	req.Header.Set("Content-Type", http.DetectContentType(data))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindStore, err, "media upload failed")
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, c.storeError(err)
	}

	var item mediaItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fault.Wrap(fault.KindStore, err, "failed to decode media response")
	}

	// Attach to the parent document and set the title in a second call;
	// the binary upload endpoint only accepts the file itself.
	payload := map[string]interface{}{"post": parentID}
	if title != "" {
		payload["title"] = title
	}
	if err := c.doJSON(ctx, "POST", fmt.Sprintf("/media/%d", item.ID), nil, payload, nil); err != nil {
		return nil, err
	}

	return &shared.Attachment{ID: item.ID, URL: item.SourceURL}, nil
}

func (c *Client) TagAttachment(ctx context.Context, attachmentID int64, key, value string) error {
	payload := map[string]interface{}{
		"meta": map[string]string{key: value},
	}
	return c.doJSON(ctx, "POST", fmt.Sprintf("/media/%d", attachmentID), nil, payload, nil)
}

func (c *Client) ListAttachments(ctx context.Context, parentID int64) ([]shared.Attachment, error) {
	var attachments []shared.Attachment

	for page := 1; ; page++ {
		query := url.Values{
			"parent":   {fmt.Sprintf("%d", parentID)},
			"context":  {"edit"},
			"per_page": {fmt.Sprintf("%d", perPage)},
			"page":     {fmt.Sprintf("%d", page)},
		}

		var items []mediaItem
		if err := c.doJSON(ctx, "GET", "/media", query, nil, &items); err != nil {
			// Past-the-end pages come back as an error, not an empty list.
			if page > 1 && fault.KindOf(err) == fault.KindStore {
				break
			}
			return nil, err
		}

		for _, item := range items {
			attachments = append(attachments, shared.Attachment{
				ID:        item.ID,
				URL:       item.SourceURL,
				SourceURL: metaString(item.Meta, shared.MetaSourceURL, shared.MetaSourceURLLegacy),
			})
		}

		if len(items) < perPage {
			break
		}
	}

	return attachments, nil
}

func (c *Client) DeleteAttachment(ctx context.Context, attachmentID int64) error {
	query := url.Values{"force": {"true"}}
	return c.doJSON(ctx, "DELETE", fmt.Sprintf("/media/%d", attachmentID), query, nil, nil)
}

func (c *Client) SetFeaturedImage(ctx context.Context, documentID, attachmentID int64) error {
	payload := map[string]interface{}{"featured_media": attachmentID}
	return c.doJSON(ctx, "POST", fmt.Sprintf("/posts/%d", documentID), nil, payload, nil)
}

// --- Categories & metadata ---

func (c *Client) ResolveOrCreateCategory(ctx context.Context, name string, parentID int64) (int64, error) {
	query := url.Values{
		"search":   {name},
		"per_page": {fmt.Sprintf("%d", perPage)},
	}

	var existing []category
	if err := c.doJSON(ctx, "GET", "/categories", query, nil, &existing); err != nil {
		return 0, err
	}
	for _, cat := range existing {
		if strings.EqualFold(cat.Name, name) && cat.Parent == parentID {
			return cat.ID, nil
		}
	}

	payload := map[string]interface{}{"name": name}
	if parentID != 0 {
		payload["parent"] = parentID
	}

	var created category
	err := c.doJSON(ctx, "POST", "/categories", nil, payload, &created)
	if err == nil {
		return created.ID, nil
	}

	// A concurrent create may have won the race; the store reports the
	// existing term's id on the conflict.
	if termID := termExistsID(err); termID != 0 {
		return termID, nil
	}
	return 0, err
}

// termExistsID extracts the existing term id from a term_exists conflict.
func termExistsID(err error) int64 {
	var httpErr *httputil.HTTPError
	if !errors.As(err, &httpErr) {
		return 0
	}

	var body struct {
		Code string `json:"code"`
		Data struct {
			TermID int64 `json:"term_id"`
		} `json:"data"`
	}
	if jsonErr := json.Unmarshal([]byte(httpErr.Body), &body); jsonErr != nil {
		return 0
	}
	if body.Code != "term_exists" {
		return 0
	}
	return body.Data.TermID
}

func (c *Client) SetDocumentCategories(ctx context.Context, documentID int64, categoryIDs []int64) error {
	payload := map[string]interface{}{"categories": categoryIDs}
	return c.doJSON(ctx, "POST", fmt.Sprintf("/posts/%d", documentID), nil, payload, nil)
}

func (c *Client) SetDocumentMetadata(ctx context.Context, documentID int64, meta map[string]string) error {
	payload := map[string]interface{}{"meta": meta}
	return c.doJSON(ctx, "POST", fmt.Sprintf("/posts/%d", documentID), nil, payload, nil)
}

// DocumentLinks returns the admin edit URL and the public permalink.
func (c *Client) DocumentLinks(ctx context.Context, documentID int64) (string, string, error) {
	var p post
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/posts/%d", documentID), url.Values{"context": {"edit"}}, nil, &p); err != nil {
		return "", "", err
	}

	editURL := fmt.Sprintf("%s/wp-admin/post.php?post=%d&action=edit", c.baseURL, documentID)
	return editURL, p.Link, nil
}

// metaString returns the first non-empty meta value among keys.
func metaString(meta map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		value, ok := meta[key]
		if !ok || value == nil {
			continue
		}
		s := fmt.Sprint(value)
		if s != "" {
			return s
		}
	}
	return ""
}
