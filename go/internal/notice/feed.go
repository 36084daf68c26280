package notice

import (
	"sort"

	"github.com/mcdev12/ctfsession/go/internal/models"
)

// Feed is the ordered notice list of one processor: announcements newest first,
// followed by bloods in receipt order. Hints are never retained. Feed is not safe
// for concurrent use; the owning processor serialises access.
type Feed struct {
	announcements []models.Notice
	bloods        []models.Notice
	seen          map[string]struct{}
}

func NewFeed() *Feed {
	return &Feed{seen: make(map[string]struct{})}
}

// Rebuild replaces the feed with a pulled history. Announcements are sorted newest
// first, bloods keep server order and hints are dropped. Duplicates inside the
// history collapse to their first occurrence.
func (f *Feed) Rebuild(history []models.Notice) {
	f.announcements = f.announcements[:0:0]
	f.bloods = f.bloods[:0:0]
	f.seen = make(map[string]struct{}, len(history))

	for _, n := range history {
		if n.Kind == models.NoticeHint || !f.remember(n) {
			continue
		}
		switch {
		case n.Kind == models.NoticeAnnouncement:
			f.announcements = append(f.announcements, n)
		case n.Kind.IsBlood():
			f.bloods = append(f.bloods, n)
		}
	}

	sort.SliceStable(f.announcements, func(i, j int) bool {
		return f.announcements[i].CreatedAt.After(f.announcements[j].CreatedAt)
	})
}

// Push adds a live notice. Announcements go to the front, bloods to the back. It
// reports false for hints and for notices already in the feed.
func (f *Feed) Push(n models.Notice) bool {
	if n.Kind != models.NoticeAnnouncement && !n.Kind.IsBlood() {
		return false
	}
	if !f.remember(n) {
		return false
	}
	if n.Kind == models.NoticeAnnouncement {
		f.announcements = append([]models.Notice{n}, f.announcements...)
	} else {
		f.bloods = append(f.bloods, n)
	}
	return true
}

// Entries returns a copy of the feed in display order.
func (f *Feed) Entries() []models.Notice {
	out := make([]models.Notice, 0, len(f.announcements)+len(f.bloods))
	out = append(out, f.announcements...)
	return append(out, f.bloods...)
}

func (f *Feed) Len() int {
	return len(f.announcements) + len(f.bloods)
}

func (f *Feed) remember(n models.Notice) bool {
	key := n.Key()
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}
