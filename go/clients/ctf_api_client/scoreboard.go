package ctf_api_client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

type ScoreboardItem struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Rank             int    `json:"rank"`
	Score            int    `json:"score"`
	SolvedChallenges []int  `json:"solvedChallenges"`
}

type TimelinePoint struct {
	Time  time.Time `json:"time"`
	Score int       `json:"score"`
}

type TimelineResponse struct {
	TeamID int             `json:"teamId"`
	Name   string          `json:"name"`
	Items  []TimelinePoint `json:"items"`
}

type ScoreboardResponse struct {
	UpdateTime time.Time                  `json:"updateTime"`
	Items      []ScoreboardItem           `json:"items"`
	TimeLines  []TimelineResponse         `json:"timeLines"`
	Challenges map[string][]ChallengeInfo `json:"challenges"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"pageSize"`
	Total      int                        `json:"total"`
}

// FetchScoreboard returns one server-sliced page of the scoreboard.
func (c *Client) FetchScoreboard(ctx context.Context, query models.ScoreboardQuery) (*models.ScoreboardSnapshot, error) {
	params := url.Values{}
	params.Set(PageQueryParam, strconv.Itoa(query.Page))
	params.Set(PageSizeQueryParam, strconv.Itoa(query.PageSize))
	if query.GroupID != nil {
		params.Set(GroupQueryParam, *query.GroupID)
	}
	endpoint := fmt.Sprintf(ScoreboardEndpoint, query.GameID) + "?" + params.Encode()

	var response ScoreboardResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get scoreboard for game %d: %w", query.GameID, err)
	}

	snapshot := &models.ScoreboardSnapshot{
		UpdatedAt:  response.UpdateTime,
		Items:      make([]models.TeamScore, 0, len(response.Items)),
		Timelines:  make([]models.TeamTimeline, 0, len(response.TimeLines)),
		Challenges: make(map[string][]models.ChallengeSummary, len(response.Challenges)),
		Page:       response.Page,
		PageSize:   response.PageSize,
		Total:      response.Total,
	}
	if snapshot.Page == 0 {
		snapshot.Page = query.Page
	}
	if snapshot.PageSize == 0 {
		snapshot.PageSize = query.PageSize
	}

	for _, item := range response.Items {
		snapshot.Items = append(snapshot.Items, models.TeamScore{
			Rank:   item.Rank,
			TeamID: item.ID,
			Name:   item.Name,
			Score:  item.Score,
			Solved: item.SolvedChallenges,
		})
	}
	for _, tl := range response.TimeLines {
		points := make([]models.ScorePoint, 0, len(tl.Items))
		for _, p := range tl.Items {
			points = append(points, models.ScorePoint{Time: p.Time, Score: p.Score})
		}
		snapshot.Timelines = append(snapshot.Timelines, models.TeamTimeline{TeamID: tl.TeamID, Name: tl.Name, Points: points})
	}
	for category, items := range response.Challenges {
		snapshot.Challenges[category] = toSummaries(category, items)
	}

	return snapshot, nil
}
