package scoreboard

import (
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

// Series is one team's chart line.
type Series struct {
	TeamID int                 `json:"team_id"`
	Name   string              `json:"name"`
	Points []models.ScorePoint `json:"points"`
}

// BuildSeries turns observed timelines into chart series. Each series starts at
// (start, 0). When the last sample predates the window end it is carried flat to
// that end. The window end is min(now, end), pushed out to the latest sample if one
// is later. Nothing is synthesised between samples.
func BuildSeries(timelines []models.TeamTimeline, start, end, now time.Time) []Series {
	windowEnd := end
	if now.Before(windowEnd) {
		windowEnd = now
	}

	out := make([]Series, 0, len(timelines))
	for _, tl := range timelines {
		points := make([]models.ScorePoint, 0, len(tl.Points)+2)
		points = append(points, models.ScorePoint{Time: start, Score: 0})
		points = append(points, tl.Points...)

		teamEnd := windowEnd
		if n := len(tl.Points); n > 0 {
			last := tl.Points[n-1]
			if last.Time.After(teamEnd) {
				teamEnd = last.Time
			}
			if last.Time.Before(teamEnd) {
				points = append(points, models.ScorePoint{Time: teamEnd, Score: last.Score})
			}
		} else if teamEnd.After(start) {
			points = append(points, models.ScorePoint{Time: teamEnd, Score: 0})
		}

		out = append(out, Series{TeamID: tl.TeamID, Name: tl.Name, Points: points})
	}
	return out
}
