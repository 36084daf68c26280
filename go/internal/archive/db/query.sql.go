package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const createNotice = `-- name: CreateNotice :execrows
INSERT INTO notices (id, game_id, notice_key, kind, created_at, payload)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (game_id, notice_key) DO NOTHING
`

type CreateNoticeParams struct {
	ID        uuid.UUID             `json:"id"`
	GameID    int32                 `json:"game_id"`
	NoticeKey string                `json:"notice_key"`
	Kind      string                `json:"kind"`
	CreatedAt time.Time             `json:"created_at"`
	Payload   pqtype.NullRawMessage `json:"payload"`
}

func (q *Queries) CreateNotice(ctx context.Context, arg CreateNoticeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createNotice,
		arg.ID,
		arg.GameID,
		arg.NoticeKey,
		arg.Kind,
		arg.CreatedAt,
		arg.Payload,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createSnapshot = `-- name: CreateSnapshot :exec
INSERT INTO scoreboard_snapshots (id, game_id, updated_at, page, page_size, total, timelines)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type CreateSnapshotParams struct {
	ID        uuid.UUID             `json:"id"`
	GameID    int32                 `json:"game_id"`
	UpdatedAt time.Time             `json:"updated_at"`
	Page      int32                 `json:"page"`
	PageSize  int32                 `json:"page_size"`
	Total     int32                 `json:"total"`
	Timelines pqtype.NullRawMessage `json:"timelines"`
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, createSnapshot,
		arg.ID,
		arg.GameID,
		arg.UpdatedAt,
		arg.Page,
		arg.PageSize,
		arg.Total,
		arg.Timelines,
	)
	return err
}

const createSnapshotTeam = `-- name: CreateSnapshotTeam :exec
INSERT INTO snapshot_teams (snapshot_id, team_id, name, rank, score, solved)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreateSnapshotTeamParams struct {
	SnapshotID uuid.UUID             `json:"snapshot_id"`
	TeamID     int32                 `json:"team_id"`
	Name       string                `json:"name"`
	Rank       int32                 `json:"rank"`
	Score      int32                 `json:"score"`
	Solved     pqtype.NullRawMessage `json:"solved"`
}

func (q *Queries) CreateSnapshotTeam(ctx context.Context, arg CreateSnapshotTeamParams) error {
	_, err := q.db.ExecContext(ctx, createSnapshotTeam,
		arg.SnapshotID,
		arg.TeamID,
		arg.Name,
		arg.Rank,
		arg.Score,
		arg.Solved,
	)
	return err
}

const listNotices = `-- name: ListNotices :many
SELECT id, game_id, notice_key, kind, created_at, payload
FROM notices
WHERE game_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListNotices(ctx context.Context, gameID int32) ([]Notice, error) {
	rows, err := q.db.QueryContext(ctx, listNotices, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notice
	for rows.Next() {
		var i Notice
		if err := rows.Scan(
			&i.ID,
			&i.GameID,
			&i.NoticeKey,
			&i.Kind,
			&i.CreatedAt,
			&i.Payload,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
