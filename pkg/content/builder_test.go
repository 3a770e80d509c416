package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stravapress/server/pkg/strava"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2:05", formatDuration(125))
	assert.Equal(t, "1:02:05", formatDuration(3725))
	assert.Equal(t, "0:45", formatDuration(45))
	assert.Equal(t, "1:00:00", formatDuration(3600))
	assert.Equal(t, "59:59", formatDuration(3599))
}

func TestFormatPace(t *testing.T) {
	// 3.0 m/s -> 333.33 s/km -> 5:33
	assert.Equal(t, "5:33", formatPace(3.0))
	assert.Equal(t, "--:--", formatPace(0))
	assert.Equal(t, "--:--", formatPace(-1))
	// 2.5 m/s -> exactly 400 s/km
	assert.Equal(t, "6:40", formatPace(2.5))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "36.0", formatSpeed(10))
	assert.Equal(t, "9.7", formatSpeed(2.7))
}

func TestFormatDistanceKm(t *testing.T) {
	assert.Equal(t, "5", formatDistanceKm(5000))
	assert.Equal(t, "5.23", formatDistanceKm(5234))
	assert.Equal(t, "5.2", formatDistanceKm(5200))
	assert.Equal(t, "0.5", formatDistanceKm(500))
}

func TestSportLabel(t *testing.T) {
	assert.Equal(t, "Trail Run", SportLabel("TrailRun"))
	assert.Equal(t, "Run", SportLabel("Run"))
	assert.Equal(t, "E Bike Ride", SportLabel("EBikeRide"))
}

func TestBuildRunActivity(t *testing.T) {
	activity := &strava.Activity{
		ID:           13579,
		Name:         "Morning Run",
		SportType:    "Run",
		Distance:     5000,
		MovingTime:   1500,
		ElapsedTime:  1600,
		AverageSpeed: 3.333,
		MaxSpeed:     4.1,
		Description:  "Nice & easy\nfelt great",
	}

	body := Build(activity, nil)

	assert.Contains(t, body, "Nice &amp; easy<br />\nfelt great")
	assert.Contains(t, body, "<td>5 km</td>")
	assert.Contains(t, body, "<td>25:00</td>")
	assert.Contains(t, body, "<td>26:40</td>")
	assert.Contains(t, body, "Avg Pace")
	assert.Contains(t, body, "<td>5:00 /km</td>")
	assert.Contains(t, body, "Best Pace")
	assert.NotContains(t, body, "km/h")
	assert.Contains(t, body, `href="https://www.strava.com/activities/13579"`)
	assert.NotContains(t, body, "wp:gallery")
}

func TestBuildRideUsesSpeed(t *testing.T) {
	activity := &strava.Activity{
		ID:           1,
		SportType:    "Ride",
		Distance:     20000,
		MovingTime:   3600,
		AverageSpeed: 5.556,
		MaxSpeed:     12.5,
	}

	body := Build(activity, nil)

	assert.Contains(t, body, "Avg Speed")
	assert.Contains(t, body, "<td>20.0 km/h</td>")
	assert.Contains(t, body, "Max Speed")
	assert.Contains(t, body, "<td>45.0 km/h</td>")
	assert.NotContains(t, body, "/km")
}

func TestBuildOmitsAbsentFields(t *testing.T) {
	activity := &strava.Activity{ID: 2, SportType: "Run"}

	body := Build(activity, nil)

	assert.NotContains(t, body, "Distance")
	assert.NotContains(t, body, "Moving Time")
	assert.NotContains(t, body, "Heart Rate")
	assert.NotContains(t, body, "Calories")
	assert.NotContains(t, body, "Kudos")
	assert.NotContains(t, body, "Gear")
	assert.NotContains(t, body, "wp:paragraph -->\n<p>")
}

func TestBuildElapsedTimeOnlyWhenDifferent(t *testing.T) {
	activity := &strava.Activity{ID: 3, SportType: "Run", MovingTime: 600, ElapsedTime: 600}
	assert.NotContains(t, Build(activity, nil), "Elapsed Time")

	activity.ElapsedTime = 700
	assert.Contains(t, Build(activity, nil), "Elapsed Time")
}

func TestBuildGalleryListsEveryPhoto(t *testing.T) {
	activity := &strava.Activity{ID: 4, SportType: "Hike"}
	urls := []string{
		"https://cms.example/wp-content/uploads/a.jpg",
		"https://cms.example/wp-content/uploads/b.jpg",
	}

	body := Build(activity, urls)

	assert.Contains(t, body, "wp:gallery")
	for _, u := range urls {
		assert.Contains(t, body, u)
	}
	assert.Equal(t, 2, strings.Count(body, "<!-- wp:image -->"))
}

func TestBuildDeterministic(t *testing.T) {
	activity := &strava.Activity{
		ID: 5, SportType: "Run", Distance: 10000, MovingTime: 3000,
		AverageSpeed: 3.3, AverageHeartrate: 150.4, Calories: 600.2,
		KudosCount: 3, SufferScore: 42, Gear: &strava.Gear{Name: "Pegasus 39"},
	}

	first := Build(activity, []string{"https://cms.example/p.jpg"})
	second := Build(activity, []string{"https://cms.example/p.jpg"})
	assert.Equal(t, first, second)
	assert.Contains(t, first, "<td>150 bpm</td>")
	assert.Contains(t, first, "<td>600 kcal</td>")
	assert.Contains(t, first, "<td>42</td>")
	assert.Contains(t, first, "Pegasus 39")
	assert.Contains(t, first, "<td>3</td>")
}
