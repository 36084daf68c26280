package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/ctfsession/go/internal/archive/db"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

type Querier interface {
	CreateSnapshot(ctx context.Context, arg db.CreateSnapshotParams) error
	CreateSnapshotTeam(ctx context.Context, arg db.CreateSnapshotTeamParams) error
	CreateNotice(ctx context.Context, arg db.CreateNoticeParams) (int64, error)
	ListNotices(ctx context.Context, gameID int32) ([]db.Notice, error)
}

// Repository writes what the arena observes to Postgres.
type Repository struct {
	queries Querier
	inTx    func(ctx context.Context, fn func(q Querier) error) error
}

// NewRepository creates a repository whose multi-row writes run directly on querier.
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
		inTx: func(ctx context.Context, fn func(q Querier) error) error {
			return fn(querier)
		},
	}
}

// NewSQLRepository creates a repository backed by database, writing each snapshot in one transaction.
func NewSQLRepository(database *sql.DB) *Repository {
	queries := db.New(database)
	r := NewRepository(queries)
	r.inTx = func(ctx context.Context, fn func(q Querier) error) error {
		return sqlutil.Run(ctx, database, queries.WithTx, func(q *db.Queries) error {
			return fn(q)
		})
	}
	return r
}

// RecordSnapshot stores one accepted scoreboard snapshot with its ranked rows.
func (r *Repository) RecordSnapshot(ctx context.Context, gameID int, snapshot *models.ScoreboardSnapshot) error {
	if snapshot == nil {
		return nil
	}

	timelines, err := toNullJSON(snapshot.Timelines)
	if err != nil {
		return fmt.Errorf("failed to encode timelines: %w", err)
	}

	snapshotID := uuid.New()
	err = r.inTx(ctx, func(q Querier) error {
		if err := q.CreateSnapshot(ctx, db.CreateSnapshotParams{
			ID:        snapshotID,
			GameID:    int32(gameID),
			UpdatedAt: snapshot.UpdatedAt,
			Page:      int32(snapshot.Page),
			PageSize:  int32(snapshot.PageSize),
			Total:     int32(snapshot.Total),
			Timelines: timelines,
		}); err != nil {
			return err
		}

		for _, item := range snapshot.Items {
			solved, err := toNullJSON(item.Solved)
			if err != nil {
				return err
			}
			if err := q.CreateSnapshotTeam(ctx, db.CreateSnapshotTeamParams{
				SnapshotID: snapshotID,
				TeamID:     int32(item.TeamID),
				Name:       item.Name,
				Rank:       int32(item.Rank),
				Score:      int32(item.Score),
				Solved:     solved,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	log.Debug().
		Int("game_id", gameID).
		Str("snapshot_id", snapshotID.String()).
		Int("teams", len(snapshot.Items)).
		Msg("archived scoreboard snapshot")
	return nil
}

// RecordNotice stores a notice once; repeats of the same notice are ignored.
func (r *Repository) RecordNotice(ctx context.Context, gameID int, n models.Notice) error {
	payload, err := toNullJSON(n)
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}

	rows, err := r.queries.CreateNotice(ctx, db.CreateNoticeParams{
		ID:        uuid.New(),
		GameID:    int32(gameID),
		NoticeKey: n.Key(),
		Kind:      string(n.Kind),
		CreatedAt: n.CreatedAt,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to record notice: %w", err)
	}
	if rows == 0 {
		log.Debug().Int("game_id", gameID).Str("kind", string(n.Kind)).Msg("notice already archived")
	}
	return nil
}

// ListNotices returns the archived notices of a game, newest first.
func (r *Repository) ListNotices(ctx context.Context, gameID int) ([]models.Notice, error) {
	rows, err := r.queries.ListNotices(ctx, int32(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}

	notices := make([]models.Notice, 0, len(rows))
	for _, row := range rows {
		if !row.Payload.Valid {
			continue
		}
		var n models.Notice
		if err := json.Unmarshal(row.Payload.RawMessage, &n); err != nil {
			log.Warn().Err(err).Str("id", row.ID.String()).Msg("skipping undecodable archived notice")
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}

func toNullJSON(v interface{}) (pqtype.NullRawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: len(raw) > 0 && string(raw) != "null"}, nil
}
