package ctf_api_client

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

type EntryResponse struct {
	Label string `json:"label"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
}

type InstanceResponse struct {
	Status    string          `json:"status"`
	Entries   []EntryResponse `json:"entries"`
	CloseTime *time.Time      `json:"closeTime"`
}

func (r InstanceResponse) toModel(challengeID int) models.ChallengeInstance {
	instance := models.ChallengeInstance{
		ChallengeID: challengeID,
		Status:      models.InstanceStatus(r.Status),
		Endpoints:   make([]models.Endpoint, 0, len(r.Entries)),
		ExpiresAt:   r.CloseTime,
	}
	for _, e := range r.Entries {
		instance.Endpoints = append(instance.Endpoints, models.Endpoint{Label: e.Label, Host: e.Host, Port: e.Port})
	}
	return instance
}

// CreateInstance asks the portal to start the team's instance for a challenge.
func (c *Client) CreateInstance(ctx context.Context, gameID, challengeID int) error {
	if _, err := c.Post(ctx, fmt.Sprintf(ContainerEndpoint, gameID, challengeID), nil); err != nil {
		return fmt.Errorf("failed to create instance for challenge %d: %w", challengeID, err)
	}
	return nil
}

// FetchInstanceStatus returns the authoritative status of the team's instance.
func (c *Client) FetchInstanceStatus(ctx context.Context, gameID, challengeID int) (models.ChallengeInstance, error) {
	var response InstanceResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(ContainerEndpoint, gameID, challengeID), &response); err != nil {
		return models.ChallengeInstance{}, fmt.Errorf("failed to get instance for challenge %d: %w", challengeID, err)
	}
	return response.toModel(challengeID), nil
}

// ExtendInstance pushes out the instance's expiry.
func (c *Client) ExtendInstance(ctx context.Context, gameID, challengeID int) error {
	if _, err := c.Post(ctx, fmt.Sprintf(ContainerExtendEndpoint, gameID, challengeID), nil); err != nil {
		return fmt.Errorf("failed to extend instance for challenge %d: %w", challengeID, err)
	}
	return nil
}

// DestroyInstance tears the team's instance down.
func (c *Client) DestroyInstance(ctx context.Context, gameID, challengeID int) error {
	if _, err := c.Delete(ctx, fmt.Sprintf(ContainerEndpoint, gameID, challengeID)); err != nil {
		return fmt.Errorf("failed to destroy instance for challenge %d: %w", challengeID, err)
	}
	return nil
}
