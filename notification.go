package headlessterm

import (
	"github.com/danielgatis/go-ansicode"
)

// NotificationPayload is the decoded form of an OSC 99 desktop-notification
// sequence. go-ansicode parses the colon-separated metadata and chunked
// payload and hands the result to Terminal.DesktopNotification.
type NotificationPayload = ansicode.NotificationPayload

// NotificationProvider delivers desktop-notification events (OSC 99) to a
// host notifier. Notify's return value is written back to the PTY verbatim
// when non-empty (used for query responses and activation/close reports).
type NotificationProvider interface {
	// Notify is called once a chunked notification is complete (Done == true)
	// or immediately for single-chunk notifications and queries.
	Notify(payload *NotificationPayload) string
}

// NoopNotification discards all notifications.
type NoopNotification struct{}

func (NoopNotification) Notify(payload *NotificationPayload) string { return "" }

var _ NotificationProvider = NoopNotification{}

// WithNotification sets the handler for desktop-notification events.
// Defaults to a no-op if not set.
func WithNotification(p NotificationProvider) Option {
	return func(t *Terminal) {
		t.notificationProvider = p
	}
}

// NotificationProvider returns the currently configured notification handler.
func (t *Terminal) NotificationProvider() NotificationProvider {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.notificationProvider
}

// SetNotificationProvider replaces the notification handler. Passing nil
// disables notification delivery without panicking.
func (t *Terminal) SetNotificationProvider(p NotificationProvider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notificationProvider = p
}

// DesktopNotification processes an OSC 99 payload. This method name is
// required by the ansicode.Handler interface.
func (t *Terminal) DesktopNotification(payload *NotificationPayload) {
	if t.middleware != nil && t.middleware.DesktopNotification != nil {
		t.middleware.DesktopNotification(payload, t.desktopNotificationInternal)
		return
	}
	t.desktopNotificationInternal(payload)
}

func (t *Terminal) desktopNotificationInternal(payload *NotificationPayload) {
	t.mu.RLock()
	provider := t.notificationProvider
	t.mu.RUnlock()

	if provider == nil {
		return
	}

	response := provider.Notify(payload)
	if response != "" {
		t.writeResponseString(response)
	}
}
