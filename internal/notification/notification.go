package notification

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/gen2brain/beeep"
)

const appName = "multiboxer"

// Notifier defines the interface for desktop notifications
type Notifier interface {
	NotifyStarted(windows int) error
	NotifyBroadcastChanged(enabled bool) error
	NotifyInvalidShortcuts(specs []string) error
	Notify(title, message string) error
	Beep() error
}

// SilentNotifier is a no-op implementation for tests and headless runs
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) NotifyStarted(windows int) error             { return nil }
func (s *SilentNotifier) NotifyBroadcastChanged(enabled bool) error   { return nil }
func (s *SilentNotifier) NotifyInvalidShortcuts(specs []string) error { return nil }
func (s *SilentNotifier) Notify(title, message string) error          { return nil }
func (s *SilentNotifier) Beep() error                                 { return nil }

// desktopNotifier sends through the freedesktop notification service
type desktopNotifier struct {
	enabled atomic.Bool
	send    func(title, message, icon string) error
	beep    func(freq float64, duration int) error
}

// New creates a notifier backed by beeep
func New(enabled bool) Notifier {
	logger.Debug("Initializing notification system")
	n := &desktopNotifier{
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
		beep: func(freq float64, duration int) error {
			return beeep.Beep(freq, duration)
		},
	}
	n.enabled.Store(enabled)
	return n
}

func (n *desktopNotifier) NotifyStarted(windows int) error {
	return n.Notify("Started", fmt.Sprintf("Managing %d windows", windows))
}

func (n *desktopNotifier) NotifyBroadcastChanged(enabled bool) error {
	if enabled {
		return n.Notify("Broadcast", "Broadcast ON")
	}
	return n.Notify("Broadcast", "Broadcast OFF")
}

func (n *desktopNotifier) NotifyInvalidShortcuts(specs []string) error {
	if len(specs) == 0 {
		return nil
	}
	return n.Notify("Invalid shortcuts", "Disabled: "+strings.Join(specs, ", "))
}

func (n *desktopNotifier) Notify(title, message string) error {
	if !n.enabled.Load() {
		return nil
	}
	if title != "" {
		title = appName + ": " + title
	} else {
		title = appName
	}
	if err := n.send(title, message, ""); err != nil {
		logger.Debugf("Notification failed: %v", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func (n *desktopNotifier) Beep() error {
	if !n.enabled.Load() {
		return nil
	}
	return n.beep(beeep.DefaultFreq, beeep.DefaultDuration)
}
