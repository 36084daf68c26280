package ctf_api_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/rs/zerolog/log"
)

// FetchNotices returns the game's notices in server order. Entries that cannot be
// decoded are logged and skipped.
func (c *Client) FetchNotices(ctx context.Context, gameID int) ([]models.Notice, error) {
	var response []models.NoticeMessage
	if err := c.GetJSON(ctx, fmt.Sprintf(NoticesEndpoint, gameID), &response); err != nil {
		return nil, fmt.Errorf("failed to get notices for game %d: %w", gameID, err)
	}

	notices := make([]models.Notice, 0, len(response))
	for _, msg := range response {
		n, err := msg.Notice()
		if err != nil {
			log.Warn().Err(err).Int("game_id", gameID).Int("notice_id", msg.ID).Msg("skipping undecodable notice")
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}
