package archive

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/archive/db"
	"github.com/mcdev12/ctfsession/go/internal/models"
)

type fakeQuerier struct {
	snapshots []db.CreateSnapshotParams
	teams     []db.CreateSnapshotTeamParams
	notices   map[string]db.CreateNoticeParams
	order     []string
	failTeam  bool
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{notices: make(map[string]db.CreateNoticeParams)}
}

func (f *fakeQuerier) CreateSnapshot(ctx context.Context, arg db.CreateSnapshotParams) error {
	f.snapshots = append(f.snapshots, arg)
	return nil
}

func (f *fakeQuerier) CreateSnapshotTeam(ctx context.Context, arg db.CreateSnapshotTeamParams) error {
	if f.failTeam {
		return errors.New("constraint violation")
	}
	f.teams = append(f.teams, arg)
	return nil
}

func (f *fakeQuerier) CreateNotice(ctx context.Context, arg db.CreateNoticeParams) (int64, error) {
	if _, ok := f.notices[arg.NoticeKey]; ok {
		return 0, nil
	}
	f.notices[arg.NoticeKey] = arg
	f.order = append(f.order, arg.NoticeKey)
	return 1, nil
}

func (f *fakeQuerier) ListNotices(ctx context.Context, gameID int32) ([]db.Notice, error) {
	var out []db.Notice
	for i := len(f.order) - 1; i >= 0; i-- {
		arg := f.notices[f.order[i]]
		out = append(out, db.Notice{
			ID:        arg.ID,
			GameID:    arg.GameID,
			NoticeKey: arg.NoticeKey,
			Kind:      arg.Kind,
			CreatedAt: arg.CreatedAt,
			Payload:   arg.Payload,
		})
	}
	return out, nil
}

func TestRecordSnapshotWritesTeams(t *testing.T) {
	q := newFakeQuerier()
	repo := NewRepository(q)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	snap := &models.ScoreboardSnapshot{
		UpdatedAt: at,
		Items: []models.TeamScore{
			{Rank: 1, TeamID: 10, Name: "alpha", Score: 500, Solved: []int{1, 2}},
			{Rank: 2, TeamID: 11, Name: "beta", Score: 300},
		},
		Timelines: []models.TeamTimeline{{TeamID: 10, Name: "alpha", Points: []models.ScorePoint{{Time: at, Score: 500}}}},
		Page:      1,
		PageSize:  20,
		Total:     2,
	}
	if err := repo.RecordSnapshot(context.Background(), 7, snap); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	if len(q.snapshots) != 1 || len(q.teams) != 2 {
		t.Fatalf("expected 1 snapshot and 2 teams, got %d/%d", len(q.snapshots), len(q.teams))
	}
	row := q.snapshots[0]
	if row.GameID != 7 || row.Total != 2 || !row.Timelines.Valid {
		t.Fatalf("unexpected snapshot row %+v", row)
	}
	for _, team := range q.teams {
		if team.SnapshotID != row.ID {
			t.Fatalf("team row not linked to snapshot")
		}
	}
	if !q.teams[0].Solved.Valid || q.teams[1].Solved.Valid {
		t.Fatalf("solved payload validity wrong: %+v %+v", q.teams[0].Solved, q.teams[1].Solved)
	}

	if err := repo.RecordSnapshot(context.Background(), 7, nil); err != nil {
		t.Fatalf("nil snapshot should be ignored: %v", err)
	}
}

func TestRecordSnapshotSurfacesFailure(t *testing.T) {
	q := newFakeQuerier()
	q.failTeam = true
	repo := NewRepository(q)

	snap := &models.ScoreboardSnapshot{Items: []models.TeamScore{{Rank: 1, TeamID: 1, Name: "a"}}}
	if err := repo.RecordSnapshot(context.Background(), 1, snap); err == nil {
		t.Fatalf("expected error when a team row fails")
	}
}

func TestRecordNoticeDeduplicatesAndLists(t *testing.T) {
	q := newFakeQuerier()
	repo := NewRepository(q)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	first, _ := models.NewNotice(models.NoticeAnnouncement, at, []string{"welcome"})
	blood, _ := models.NewNotice(models.NoticeFirstBlood, at.Add(time.Minute), []string{"alpha", "web-1"})

	for _, n := range []models.Notice{first, blood, first} {
		if err := repo.RecordNotice(context.Background(), 3, n); err != nil {
			t.Fatalf("RecordNotice: %v", err)
		}
	}
	if len(q.notices) != 2 {
		t.Fatalf("expected 2 archived notices, got %d", len(q.notices))
	}

	listed, err := repo.ListNotices(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListNotices: %v", err)
	}
	if len(listed) != 2 || listed[0].Kind != models.NoticeFirstBlood || listed[1].Kind != models.NoticeAnnouncement {
		t.Fatalf("unexpected listing %+v", listed)
	}
	if listed[0].Blood == nil || listed[0].Blood.Team != "alpha" {
		t.Fatalf("blood payload lost: %+v", listed[0])
	}
}

func TestToNullJSON(t *testing.T) {
	var empty []int
	if v, err := toNullJSON(empty); err != nil || v.Valid {
		t.Fatalf("nil slice should be NULL, got %+v %v", v, err)
	}
	v, err := toNullJSON([]int{1})
	if err != nil || !v.Valid {
		t.Fatalf("non-empty slice should be valid: %+v %v", v, err)
	}
	var out []int
	if err := json.Unmarshal(v.RawMessage, &out); err != nil || len(out) != 1 {
		t.Fatalf("payload round trip failed: %v %v", out, err)
	}
}
