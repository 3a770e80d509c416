package strava

import (
	"encoding/json"
	"strconv"
)

// Activity is a detailed activity as returned by the Strava v3 API.
// It is an immutable snapshot: fetched once per import, never cached.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	MaxSpeed           float64   `json:"max_speed"`            // m/s
	AverageHeartrate   float64   `json:"average_heartrate"`
	MaxHeartrate       float64   `json:"max_heartrate"`
	Calories           float64   `json:"calories"`
	KudosCount         int       `json:"kudos_count"`
	SufferScore        float64   `json:"suffer_score"`
	Gear               *Gear     `json:"gear"`
	StartLatLng        []float64 `json:"start_latlng"`
	Map                *Map      `json:"map"`
	Description        string    `json:"description"`
	TotalPhotoCount    int       `json:"total_photo_count"`
	StartDateLocal     string    `json:"start_date_local"` // ISO 8601, no offset
}

type Gear struct {
	Name string `json:"name"`
}

type Map struct {
	SummaryPolyline string `json:"summary_polyline"`
}

// ExternalID is the activity id as stored in document metadata.
func (a *Activity) ExternalID() string {
	return strconv.FormatInt(a.ID, 10)
}

// SportKind returns sport_type, falling back to the legacy type field.
func (a *Activity) SportKind() string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// GearName returns the gear name, "" when no gear is attached.
func (a *Activity) GearName() string {
	if a.Gear == nil {
		return ""
	}
	return a.Gear.Name
}

// Polyline returns the route summary polyline, "" when the activity has no map.
func (a *Activity) Polyline() string {
	if a.Map == nil {
		return ""
	}
	return a.Map.SummaryPolyline
}

// Photo is one photo entry from the activity photos endpoint. Urls maps
// resolution keys to URLs; the largest key is the highest resolution.
type Photo struct {
	Urls map[string]string `json:"urls"`
	URL  string            `json:"url"`
}

// Credential is the persisted OAuth state for the connected athlete.
type Credential struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"` // unix seconds
	Athlete      json.RawMessage `json:"athlete,omitempty"`
}
