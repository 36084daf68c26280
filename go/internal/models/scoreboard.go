package models

import "time"

// TeamScore is one ranked row of a scoreboard.
type TeamScore struct {
	Rank   int    `json:"rank"`
	TeamID int    `json:"team_id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Solved []int  `json:"solved"`
}

// ScorePoint is one cumulative score sample.
type ScorePoint struct {
	Time  time.Time `json:"time"`
	Score int       `json:"score"`
}

// TeamTimeline is the observed score history of one team.
type TeamTimeline struct {
	TeamID int          `json:"team_id"`
	Name   string       `json:"name"`
	Points []ScorePoint `json:"points"`
}

// ScoreboardQuery selects the slice of the scoreboard the server returns.
type ScoreboardQuery struct {
	GameID   int     `json:"game_id"`
	GroupID  *string `json:"group_id,omitempty"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// ScoreboardSnapshot is one full, atomically replaced rendering of the rankings.
type ScoreboardSnapshot struct {
	UpdatedAt  time.Time                     `json:"updated_at"`
	Items      []TeamScore                   `json:"items"`
	Timelines  []TeamTimeline                `json:"timelines"`
	Challenges map[string][]ChallengeSummary `json:"challenges"`
	Page       int                           `json:"page"`
	PageSize   int                           `json:"page_size"`
	Total      int                           `json:"total"`
}
