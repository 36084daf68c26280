package ctf_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
)

type ChallengeDetailResponse struct {
	ID       int               `json:"id"`
	Title    string            `json:"title"`
	Category string            `json:"category"`
	Content  string            `json:"content"`
	Hints    []string          `json:"hints"`
	Score    int               `json:"score"`
	Type     string            `json:"type"`
	Instance *InstanceResponse `json:"instance"`
}

type SubmitRequest struct {
	Flag string `json:"flag"`
}

// FetchChallengeDetail returns one challenge, including the team's instance if any.
func (c *Client) FetchChallengeDetail(ctx context.Context, gameID, challengeID int) (*models.ChallengeDetail, error) {
	var response ChallengeDetailResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(ChallengeEndpoint, gameID, challengeID), &response); err != nil {
		return nil, fmt.Errorf("failed to get challenge %d: %w", challengeID, err)
	}

	detail := &models.ChallengeDetail{
		ID:       response.ID,
		Title:    response.Title,
		Category: response.Category,
		Content:  response.Content,
		Hints:    response.Hints,
		Score:    response.Score,
		Dynamic:  strings.HasPrefix(response.Type, "Dynamic") && strings.HasSuffix(response.Type, "Container"),
	}
	if detail.Hints == nil {
		detail.Hints = []string{}
	}
	if response.Instance != nil {
		instance := response.Instance.toModel(challengeID)
		detail.Instance = &instance
	}

	return detail, nil
}

// SubmitFlag submits a flag and returns the submission id to poll.
func (c *Client) SubmitFlag(ctx context.Context, gameID, challengeID int, flag string) (int, error) {
	payload, err := json.Marshal(SubmitRequest{Flag: flag})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal submission: %w", err)
	}

	body, err := c.Post(ctx, fmt.Sprintf(ChallengeEndpoint, gameID, challengeID), bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to submit flag: %w", err)
	}

	id, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("unexpected submission id %q: %w", string(body), apierr.ErrTransient)
	}
	return id, nil
}

// FetchSubmissionResult returns the judged result of a submission.
func (c *Client) FetchSubmissionResult(ctx context.Context, gameID, challengeID, submissionID int) (models.SubmissionResult, error) {
	var status string
	if err := c.GetJSON(ctx, fmt.Sprintf(SubmissionEndpoint, gameID, challengeID, submissionID), &status); err != nil {
		return models.SubmissionUnknown, fmt.Errorf("failed to get submission %d: %w", submissionID, err)
	}

	switch status {
	case "Accepted":
		return models.SubmissionAccepted, nil
	case "WrongAnswer", "Wrong":
		return models.SubmissionWrong, nil
	default:
		return models.SubmissionUnknown, nil
	}
}
