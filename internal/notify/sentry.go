package notify

import (
	"github.com/getsentry/sentry-go"

	"github.com/example/pantrysync/internal/syncer"
)

// Sentry reports error notifications of one user to Sentry. Info
// notifications are dropped.
type Sentry struct {
	hub    *sentry.Hub
	userID string
}

// NewSentry creates a reporter on hub. A nil hub uses the current hub.
func NewSentry(hub *sentry.Hub, userID string) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sentry{hub: hub, userID: userID}
}

// Notify implements syncer.Notifier.
func (s *Sentry) Notify(message string, kind syncer.Kind) {
	if kind != syncer.KindError {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: s.userID})
		scope.SetTag("component", "syncer")
		scope.SetLevel(sentry.LevelWarning)
		s.hub.CaptureMessage(message)
	})
}
