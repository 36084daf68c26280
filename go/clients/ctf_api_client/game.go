package ctf_api_client

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

type GameResponse struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	PracticeMode bool      `json:"practiceMode"`
	Status       string    `json:"status"`
	TeamName     string    `json:"teamName"`
	TeamScore    int       `json:"teamScore"`
	TeamRank     int       `json:"teamRank"`
}

type ChallengeInfo struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Score    int    `json:"score"`
	Solved   bool   `json:"solved"`
}

type CategoryGroup struct {
	Category string          `json:"category"`
	Items    []ChallengeInfo `json:"items"`
}

type GameDetailsResponse struct {
	Challenges []CategoryGroup `json:"challenges"`
}

// FetchSession returns the viewer's session for a game.
func (c *Client) FetchSession(ctx context.Context, gameID int) (*models.GameSession, error) {
	var response GameResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(GameEndpoint, gameID), &response); err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", gameID, err)
	}

	status := models.ParticipationStatus(response.Status)
	switch status {
	case models.ParticipationUnauthenticated, models.ParticipationUnregistered,
		models.ParticipationPending, models.ParticipationApproved, models.ParticipationBanned:
	case "":
		status = models.ParticipationUnregistered
	default:
		return nil, fmt.Errorf("unknown participation status %q for game %d", response.Status, gameID)
	}

	return &models.GameSession{
		GameID:       gameID,
		Title:        response.Title,
		StartTime:    response.Start,
		EndTime:      response.End,
		PracticeMode: response.PracticeMode,
		Status:       status,
		TeamName:     response.TeamName,
		TeamScore:    response.TeamScore,
		TeamRank:     response.TeamRank,
	}, nil
}

// FetchChallengeList returns the challenges of a game grouped by category.
func (c *Client) FetchChallengeList(ctx context.Context, gameID int) (*models.ChallengeList, error) {
	var response GameDetailsResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(GameDetailsEndpoint, gameID), &response); err != nil {
		return nil, fmt.Errorf("failed to get challenges for game %d: %w", gameID, err)
	}

	list := &models.ChallengeList{
		Categories: make([]string, 0, len(response.Challenges)),
		ByCategory: make(map[string][]models.ChallengeSummary, len(response.Challenges)),
	}
	for _, group := range response.Challenges {
		if _, seen := list.ByCategory[group.Category]; !seen {
			list.Categories = append(list.Categories, group.Category)
		}
		list.ByCategory[group.Category] = append(list.ByCategory[group.Category], toSummaries(group.Category, group.Items)...)
	}

	return list, nil
}

func toSummaries(category string, items []ChallengeInfo) []models.ChallengeSummary {
	out := make([]models.ChallengeSummary, 0, len(items))
	for _, item := range items {
		cat := item.Category
		if cat == "" {
			cat = category
		}
		out = append(out, models.ChallengeSummary{
			ID:       item.ID,
			Title:    item.Title,
			Category: cat,
			Score:    item.Score,
			Solved:   item.Solved,
		})
	}
	return out
}
