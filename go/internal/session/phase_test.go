package session

import (
	"testing"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

func TestDerivePhase(t *testing.T) {
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	before := start.Add(-time.Hour)
	during := start.Add(time.Hour)
	after := end.Add(time.Hour)

	statuses := []models.ParticipationStatus{
		models.ParticipationUnauthenticated,
		models.ParticipationUnregistered,
		models.ParticipationPending,
		models.ParticipationApproved,
		models.ParticipationBanned,
	}

	// expected[status][practice][time]
	type key struct {
		status   models.ParticipationStatus
		practice bool
		now      time.Time
	}
	expected := map[key]models.GamePhase{}
	for _, practice := range []bool{false, true} {
		for _, now := range []time.Time{before, during, start, end, after} {
			for _, status := range statuses {
				var want models.GamePhase
				switch {
				case now.After(end) && !practice:
					want = models.PhaseEnded
				case status == models.ParticipationUnauthenticated:
					want = models.PhaseUnLogin
				case status == models.ParticipationUnregistered:
					want = models.PhaseUnregistered
				case status == models.ParticipationPending:
					want = models.PhaseWaitingApproval
				case status == models.ParticipationBanned:
					want = models.PhaseBanned
				case now.Before(start):
					want = models.PhasePending
				case now.Before(end):
					want = models.PhaseRunning
				case practice:
					want = models.PhasePracticeMode
				default:
					want = models.PhaseEnded
				}
				expected[key{status, practice, now}] = want
			}
		}
	}

	for k, want := range expected {
		s := models.GameSession{StartTime: start, EndTime: end, PracticeMode: k.practice, Status: k.status}
		got := DerivePhase(s, k.now)
		if got != want {
			t.Errorf("DerivePhase(%s, practice=%v, now=%s) = %s, want %s", k.status, k.practice, k.now, got, want)
		}
		if again := DerivePhase(s, k.now); again != got {
			t.Errorf("DerivePhase is not deterministic for %+v", k)
		}
		if got == models.PhaseUnknown {
			t.Errorf("DerivePhase returned the unknown phase for %+v", k)
		}
	}
}

func TestDerivePhaseTable(t *testing.T) {
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	cases := []struct {
		name     string
		status   models.ParticipationStatus
		practice bool
		now      time.Time
		want     models.GamePhase
	}{
		{"approved before start", models.ParticipationApproved, false, start.Add(-time.Minute), models.PhasePending},
		{"approved at start", models.ParticipationApproved, false, start, models.PhaseRunning},
		{"approved at end without practice", models.ParticipationApproved, false, end, models.PhaseEnded},
		{"approved at end with practice", models.ParticipationApproved, true, end, models.PhasePracticeMode},
		{"banned after end with practice", models.ParticipationBanned, true, end.Add(time.Hour), models.PhaseBanned},
		{"banned after end", models.ParticipationBanned, false, end.Add(time.Hour), models.PhaseEnded},
		{"pending during game", models.ParticipationPending, false, start.Add(time.Minute), models.PhaseWaitingApproval},
		{"anonymous after end", models.ParticipationUnauthenticated, false, end.Add(time.Second), models.PhaseEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := models.GameSession{StartTime: start, EndTime: end, PracticeMode: tc.practice, Status: tc.status}
			if got := DerivePhase(s, tc.now); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
