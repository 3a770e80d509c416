// Package content builds document bodies from activity data. Build is a
// pure function: no I/O, deterministic for identical inputs.
package content

import (
	"fmt"
	"html"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/stravapress/server/pkg/strava"
)

// paceSports render pace (min/km) instead of speed (km/h).
var paceSports = map[string]bool{
	"Run":        true,
	"TrailRun":   true,
	"VirtualRun": true,
	"Walk":       true,
	"Hike":       true,
}

// Build produces the document body: description, stats table, photo
// gallery and a link back to the source activity. Fields absent from the
// activity are omitted entirely, never rendered as zero.
func Build(activity *strava.Activity, localPhotoURLs []string) string {
	var blocks []string

	if activity.Description != "" {
		blocks = append(blocks,
			"<!-- wp:paragraph -->",
			"<p>"+nl2br(html.EscapeString(activity.Description))+"</p>",
			"<!-- /wp:paragraph -->",
			"")
	}

	blocks = append(blocks,
		`<!-- wp:group {"className":"strava-activity-stats"} -->`,
		`<div class="wp-block-group strava-activity-stats">`,
		`<!-- wp:heading {"level":3} -->`,
		"<h3>🏃 Activity Stats</h3>",
		"<!-- /wp:heading -->",
		`<!-- wp:table {"className":"strava-stats-table"} -->`,
		`<figure class="wp-block-table strava-stats-table"><table><tbody>`)

	blocks = append(blocks, statsRows(activity)...)

	blocks = append(blocks,
		"</tbody></table></figure>",
		"<!-- /wp:table -->",
		"</div>",
		"<!-- /wp:group -->",
		"")

	if len(localPhotoURLs) > 0 {
		blocks = append(blocks,
			`<!-- wp:heading {"level":3} -->`,
			"<h3>📸 Photos</h3>",
			"<!-- /wp:heading -->",
			"",
			`<!-- wp:gallery {"columns":2,"linkTo":"none","className":"strava-photos"} -->`,
			`<figure class="wp-block-gallery has-nested-images columns-2 strava-photos">`)

		for _, photoURL := range localPhotoURLs {
			blocks = append(blocks,
				"<!-- wp:image -->",
				`<figure class="wp-block-image"><img src="`+escapeURL(photoURL)+`" alt="Activity photo"/></figure>`,
				"<!-- /wp:image -->")
		}

		blocks = append(blocks,
			"</figure>",
			"<!-- /wp:gallery -->",
			"")
	}

	activityURL := "https://www.strava.com/activities/" + activity.ExternalID()
	blocks = append(blocks,
		`<!-- wp:paragraph {"className":"strava-link"} -->`,
		`<p class="strava-link"><a href="`+escapeURL(activityURL)+`" target="_blank" rel="noopener noreferrer">View on Strava →</a></p>`,
		"<!-- /wp:paragraph -->")

	return strings.Join(blocks, "\n")
}

func statsRows(activity *strava.Activity) []string {
	var rows []string
	row := func(label, value string) {
		rows = append(rows, "<tr><td><strong>"+label+"</strong></td><td>"+value+"</td></tr>")
	}

	sport := activity.SportKind()
	if sport != "" {
		row("🏅 Sport", html.EscapeString(SportLabel(sport)))
	}

	if activity.Distance > 0 {
		row("📏 Distance", formatDistanceKm(activity.Distance)+" km")
	}

	if activity.MovingTime > 0 {
		row("⏱️ Moving Time", formatDuration(activity.MovingTime))
	}
	if activity.ElapsedTime > 0 && activity.ElapsedTime != activity.MovingTime {
		row("⏳ Elapsed Time", formatDuration(activity.ElapsedTime))
	}

	if activity.AverageSpeed > 0 {
		if paceSports[sport] {
			row("🏎️ Avg Pace", formatPace(activity.AverageSpeed)+" /km")
			if activity.MaxSpeed > 0 {
				row("⚡ Best Pace", formatPace(activity.MaxSpeed)+" /km")
			}
		} else {
			row("🏎️ Avg Speed", formatSpeed(activity.AverageSpeed)+" km/h")
			if activity.MaxSpeed > 0 {
				row("⚡ Max Speed", formatSpeed(activity.MaxSpeed)+" km/h")
			}
		}
	}

	if activity.TotalElevationGain > 0 {
		row("⛰️ Elevation Gain", fmt.Sprintf("%d m", int(math.Round(activity.TotalElevationGain))))
	}

	if activity.AverageHeartrate > 0 {
		row("❤️ Avg Heart Rate", fmt.Sprintf("%d bpm", int(math.Round(activity.AverageHeartrate))))
	}
	if activity.MaxHeartrate > 0 {
		row("💓 Max Heart Rate", fmt.Sprintf("%d bpm", int(math.Round(activity.MaxHeartrate))))
	}

	if activity.Calories > 0 {
		row("🔥 Calories", fmt.Sprintf("%d kcal", int(math.Round(activity.Calories))))
	}

	if activity.SufferScore > 0 {
		row("💪 Suffer Score", strconv.FormatFloat(activity.SufferScore, 'f', -1, 64))
	}

	if name := activity.GearName(); name != "" {
		row("👟 Gear", html.EscapeString(name))
	}

	if activity.KudosCount > 0 {
		row("👍 Kudos", strconv.Itoa(activity.KudosCount))
	}

	return rows
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// formatPace renders m/s as min:sec per km; "--:--" for non-positive speed.
func formatPace(speedMS float64) string {
	if speedMS <= 0 {
		return "--:--"
	}
	paceSeconds := int(math.Round(1000 / speedMS))
	return fmt.Sprintf("%d:%02d", paceSeconds/60, paceSeconds%60)
}

// formatSpeed renders m/s as km/h with one decimal.
func formatSpeed(speedMS float64) string {
	return strconv.FormatFloat(math.Round(speedMS*36)/10, 'f', 1, 64)
}

// formatDistanceKm renders meters as km, at most two decimals, trailing
// zeros trimmed ("5 km", "5.23 km").
func formatDistanceKm(meters float64) string {
	km := math.Round(meters/10) / 100
	return strconv.FormatFloat(km, 'f', -1, 64)
}

// SportLabel spaces out a camel-cased sport token ("TrailRun" ->
// "Trail Run"). It is also the name of the sport category a document is
// filed under.
func SportLabel(sportType string) string {
	var b strings.Builder
	for _, r := range sportType {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func nl2br(s string) string {
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

func escapeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return html.EscapeString(raw)
	}
	return html.EscapeString(u.String())
}
