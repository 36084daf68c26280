package models

import (
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
)

func TestNewNoticeTagsPayloadByKind(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	ann, err := NewNotice(NoticeAnnouncement, at, []string{"welcome"})
	if err != nil || ann.Announcement == nil || ann.Announcement.Content != "welcome" {
		t.Fatalf("announcement decode failed: %+v %v", ann, err)
	}

	hint, err := NewNotice(NoticeHint, at, []string{"baby-pwn"})
	if err != nil || hint.Hint == nil || hint.Hint.Challenge != "baby-pwn" {
		t.Fatalf("hint decode failed: %+v %v", hint, err)
	}

	blood, err := NewNotice(NoticeSecondBlood, at, []string{"Team Rocket", "web-1"})
	if err != nil || blood.Blood == nil {
		t.Fatalf("blood decode failed: %+v %v", blood, err)
	}
	if blood.Blood.Team != "Team Rocket" || blood.Blood.Challenge != "web-1" || blood.Blood.Rank != 2 {
		t.Fatalf("unexpected blood payload %+v", blood.Blood)
	}
}

func TestNewNoticeRejectsMalformed(t *testing.T) {
	at := time.Now()
	cases := []struct {
		kind   NoticeKind
		values []string
	}{
		{NoticeAnnouncement, nil},
		{NoticeFirstBlood, nil},
		{NoticeKind("Mystery"), []string{"x"}},
	}
	for _, tc := range cases {
		if _, err := NewNotice(tc.kind, at, tc.values); !errors.Is(err, apierr.ErrMalformedPayload) {
			t.Errorf("NewNotice(%s, %v) error = %v, want malformed", tc.kind, tc.values, err)
		}
	}
}

func TestNoticeKeyIdentity(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a, _ := NewNotice(NoticeFirstBlood, at, []string{"alpha", "web-1"})
	b, _ := NewNotice(NoticeFirstBlood, at, []string{"alpha", "web-1"})
	c, _ := NewNotice(NoticeFirstBlood, at.Add(time.Second), []string{"alpha", "web-1"})
	d, _ := NewNotice(NoticeSecondBlood, at, []string{"alpha", "web-1"})

	if a.Key() != b.Key() {
		t.Fatalf("identical notices must share a key")
	}
	if a.Key() == c.Key() || a.Key() == d.Key() {
		t.Fatalf("differing notices must not share a key")
	}
}

func TestPhaseClassification(t *testing.T) {
	for _, p := range []GamePhase{PhaseBanned, PhaseEnded, PhaseNoSuchGame, PhaseUnLogin} {
		if !p.Terminal() || p.Active() {
			t.Errorf("%s should be terminal and inactive", p)
		}
	}
	for _, p := range []GamePhase{PhaseRunning, PhasePracticeMode} {
		if !p.Active() || p.Terminal() {
			t.Errorf("%s should be active", p)
		}
	}
	if PhasePending.Active() || PhasePending.Terminal() {
		t.Errorf("pending is neither active nor terminal")
	}
}
