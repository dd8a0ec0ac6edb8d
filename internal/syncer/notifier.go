package syncer

// Kind classifies a notification.
type Kind string

const (
	KindError Kind = "error"
	KindInfo  Kind = "info"
)

// Notifier receives user facing messages. Implementations must not block.
type Notifier interface {
	Notify(message string, kind Kind)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, kind Kind)

func (f NotifierFunc) Notify(message string, kind Kind) { f(message, kind) }

type nopNotifier struct{}

func (nopNotifier) Notify(string, Kind) {}
