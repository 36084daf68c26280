package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
)

// NoticeKind is the category of a notice.
type NoticeKind string

const (
	NoticeAnnouncement NoticeKind = "NewAnnouncement"
	NoticeHint         NoticeKind = "NewHint"
	NoticeFirstBlood   NoticeKind = "FirstBlood"
	NoticeSecondBlood  NoticeKind = "SecondBlood"
	NoticeThirdBlood   NoticeKind = "ThirdBlood"
)

// BloodRank returns 1, 2 or 3 for blood notices and 0 otherwise.
func (k NoticeKind) BloodRank() int {
	switch k {
	case NoticeFirstBlood:
		return 1
	case NoticeSecondBlood:
		return 2
	case NoticeThirdBlood:
		return 3
	}
	return 0
}

// IsBlood reports whether the kind is one of the blood categories.
func (k NoticeKind) IsBlood() bool {
	return k.BloodRank() > 0
}

// Announcement is an organiser message.
type Announcement struct {
	Content string `json:"content"`
}

// HintReady signals that a challenge gained a new hint.
type HintReady struct {
	Challenge string `json:"challenge"`
}

// Blood records the 1st/2nd/3rd solve of a challenge.
type Blood struct {
	Team      string `json:"team"`
	Challenge string `json:"challenge,omitempty"`
	Rank      int    `json:"rank"`
}

// Notice is an immutable, timestamped feed entry. Exactly one of Announcement, Hint
// or Blood is set, selected by Kind.
type Notice struct {
	Kind         NoticeKind    `json:"kind"`
	CreatedAt    time.Time     `json:"created_at"`
	Announcement *Announcement `json:"announcement,omitempty"`
	Hint         *HintReady    `json:"hint,omitempty"`
	Blood        *Blood        `json:"blood,omitempty"`
}

// NewNotice builds the tagged notice for kind from the portal's positional values.
func NewNotice(kind NoticeKind, createdAt time.Time, values []string) (Notice, error) {
	n := Notice{Kind: kind, CreatedAt: createdAt}

	value := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}

	switch {
	case kind == NoticeAnnouncement:
		if len(values) == 0 {
			return Notice{}, fmt.Errorf("announcement without content: %w", apierr.ErrMalformedPayload)
		}
		n.Announcement = &Announcement{Content: value(0)}
	case kind == NoticeHint:
		n.Hint = &HintReady{Challenge: value(0)}
	case kind.IsBlood():
		if len(values) == 0 {
			return Notice{}, fmt.Errorf("%s without team: %w", kind, apierr.ErrMalformedPayload)
		}
		n.Blood = &Blood{Team: value(0), Challenge: value(1), Rank: kind.BloodRank()}
	default:
		return Notice{}, fmt.Errorf("unknown notice kind %q: %w", kind, apierr.ErrMalformedPayload)
	}

	return n, nil
}

// Values returns the notice payload in positional form.
func (n Notice) Values() []string {
	switch {
	case n.Announcement != nil:
		return []string{n.Announcement.Content}
	case n.Hint != nil:
		return []string{n.Hint.Challenge}
	case n.Blood != nil:
		if n.Blood.Challenge == "" {
			return []string{n.Blood.Team}
		}
		return []string{n.Blood.Team, n.Blood.Challenge}
	}
	return nil
}

// Key identifies a notice occurrence. There is no message id in the feed contract, so
// two notices with the same category, payload and creation time are the same occurrence.
func (n Notice) Key() string {
	var b strings.Builder
	b.WriteString(string(n.Kind))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(n.CreatedAt.UnixMilli(), 10))
	for _, v := range n.Values() {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(v))
	}
	return b.String()
}

// NoticeMessage is the portal's wire form of a notice, shared by the pull endpoint
// and the push channel.
type NoticeMessage struct {
	ID     int       `json:"id,omitempty"`
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Values []string  `json:"values"`
}

// Notice converts the wire form into a tagged notice. The portal labels plain
// announcements "Normal".
func (m NoticeMessage) Notice() (Notice, error) {
	kind := NoticeKind(m.Type)
	if m.Type == "Normal" {
		kind = NoticeAnnouncement
	}
	if m.Time.IsZero() {
		return Notice{}, fmt.Errorf("notice without timestamp: %w", apierr.ErrMalformedPayload)
	}
	return NewNotice(kind, m.Time, m.Values)
}
