package arena

import (
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/rs/zerolog/log"
)

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Shell is the presentation side of the arena: it shows toasts and celebrations
// and re-renders when the view changes.
type Shell interface {
	Toast(level ToastLevel, message string)
	Celebrate(rank int, n models.Notice)
	ViewChanged()
}

type nopShell struct{}

func (nopShell) Toast(ToastLevel, string)     {}
func (nopShell) Celebrate(int, models.Notice) {}
func (nopShell) ViewChanged()                 {}

// LogShell writes toasts and celebrations to the log.
type LogShell struct{}

func (LogShell) Toast(level ToastLevel, message string) {
	switch level {
	case ToastError:
		log.Error().Str("toast", string(level)).Msg(message)
	default:
		log.Info().Str("toast", string(level)).Msg(message)
	}
}

func (LogShell) Celebrate(rank int, n models.Notice) {
	log.Info().Int("rank", rank).Str("challenge", n.Blood.Challenge).Msg("your team drew blood")
}

func (LogShell) ViewChanged() {}
