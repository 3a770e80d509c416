package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stravapress/server/pkg/fault"
	httputil "github.com/stravapress/server/pkg/infrastructure/http"
)

// TokenProvider supplies a valid access token for API calls.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a read-only accessor to the Strava v3 API.
type Client struct {
	tokens  TokenProvider
	client  *http.Client
	baseURL string
}

func NewClient(tokens TokenProvider) *Client {
	return &Client{
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
	}
}

// ListActivities returns one page of the athlete's activities.
func (c *Client) ListActivities(ctx context.Context, page, perPage int) ([]Activity, error) {
	var activities []Activity
	params := url.Values{
		"page":     {fmt.Sprintf("%d", page)},
		"per_page": {fmt.Sprintf("%d", perPage)},
	}
	if err := c.apiGet(ctx, "athlete/activities", params, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity returns the detailed activity.
func (c *Client) GetActivity(ctx context.Context, id string) (*Activity, error) {
	var activity Activity
	if err := c.apiGet(ctx, "activities/"+url.PathEscape(id), nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetPhotos returns the activity's photos at up to 2048px.
func (c *Client) GetPhotos(ctx context.Context, id string) ([]Photo, error) {
	var photos []Photo
	params := url.Values{"size": {"2048"}}
	if err := c.apiGet(ctx, "activities/"+url.PathEscape(id)+"/photos", params, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// apiGet performs an authenticated GET against the v3 API. A missing token
// short-circuits before any network call.
func (c *Client) apiGet(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	apiURL := c.baseURL + "/api/v3/" + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return fault.Wrap(fault.KindTransport, err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindTransport, err, "Strava request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fault.Wrap(fault.KindTransport, err, "failed to read Strava response")
	}

	if resp.StatusCode != http.StatusOK {
		message := httputil.MessageFromJSON(body)
		if message == "" {
			message = "API request failed"
		}
		return fault.New(fault.KindAPI, "%s", message).WithStatus(resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fault.Wrap(fault.KindAPI, err, "failed to decode Strava response")
	}
	return nil
}
