package shared

const (
	// Option store keys. The four token keys form one credential and are
	// always written together.
	OptionClientID       = "strava_client_id"
	OptionClientSecret   = "strava_client_secret"
	OptionAccessToken    = "strava_access_token"
	OptionRefreshToken   = "strava_refresh_token"
	OptionTokenExpiresAt = "strava_token_expires_at"
	OptionAthlete        = "strava_athlete"
	OptionPostStatus     = "strava_post_status"
	OptionPostAuthor     = "strava_post_author"

	// Document metadata keys, one per imported activity field.
	MetaActivityID    = "_strava_activity_id"
	MetaActivityURL   = "_strava_activity_url"
	MetaSportType     = "_strava_sport_type"
	MetaDistance      = "_strava_distance"
	MetaMovingTime    = "_strava_moving_time"
	MetaElapsedTime   = "_strava_elapsed_time"
	MetaElevationGain = "_strava_elevation_gain"
	MetaAvgSpeed      = "_strava_avg_speed"
	MetaMaxSpeed      = "_strava_max_speed"
	MetaAvgHeartrate  = "_strava_avg_heartrate"
	MetaMaxHeartrate  = "_strava_max_heartrate"
	MetaCalories      = "_strava_calories"
	MetaKudosCount    = "_strava_kudos_count"
	MetaSufferScore   = "_strava_suffer_score"
	MetaGear          = "_strava_gear"
	MetaStartLatLng   = "_strava_start_latlng"
	MetaPolyline      = "_strava_polyline"

	// Provenance tag on attachments created by the importer. Cleanup only
	// ever deletes attachments carrying one of these keys; anything the
	// user uploaded by hand stays untouched.
	MetaSourceURL       = "_strava_import_source_url"
	MetaSourceURLLegacy = "_strava_source_url"

	// Parent category every imported document is filed under.
	CategoryParentName = "Strava Activities"

	DefaultPostStatus = "draft"
)
