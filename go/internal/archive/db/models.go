package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Notice struct {
	ID        uuid.UUID             `json:"id"`
	GameID    int32                 `json:"game_id"`
	NoticeKey string                `json:"notice_key"`
	Kind      string                `json:"kind"`
	CreatedAt time.Time             `json:"created_at"`
	Payload   pqtype.NullRawMessage `json:"payload"`
}

type ScoreboardSnapshot struct {
	ID         uuid.UUID             `json:"id"`
	GameID     int32                 `json:"game_id"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Page       int32                 `json:"page"`
	PageSize   int32                 `json:"page_size"`
	Total      int32                 `json:"total"`
	Timelines  pqtype.NullRawMessage `json:"timelines"`
	RecordedAt time.Time             `json:"recorded_at"`
}

type SnapshotTeam struct {
	SnapshotID uuid.UUID             `json:"snapshot_id"`
	TeamID     int32                 `json:"team_id"`
	Name       string                `json:"name"`
	Rank       int32                 `json:"rank"`
	Score      int32                 `json:"score"`
	Solved     pqtype.NullRawMessage `json:"solved"`
}
