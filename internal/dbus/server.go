package dbus

import (
	"fmt"
	"sync"

	"github.com/dooshek/multiboxer/internal/core"
	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/stats"
	"github.com/dooshek/multiboxer/internal/types"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.multiboxer"
	dbusObjectPath  = "/com/dooshek/multiboxer/Controller"
	dbusInterface   = "com.dooshek.multiboxer.Controller"
)

// Controller is the part of core.Controller exposed on the bus.
type Controller interface {
	SetBroadcastEnabled(on bool)
	BroadcastEnabled() bool
	SetOverlayEnabled(on bool)
	SetInhibitKeys(list []string)
	ReparseShortcuts() []string
	RefreshWindows(pattern string) ([]types.WindowID, error)
	ApplyLayout(mode types.LayoutMode, width, height int) error
	Status() core.Status
	Config() *types.Config
	OnVisibility(fn core.VisibilityFunc)
	OnBroadcastChanged(fn func(bool))
}

// Server implements the D-Bus control service
type Server struct {
	ctrl  Controller
	stats *stats.StatsManager

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewServer creates a server for ctrl and subscribes to its events. Nothing
// is published until Start.
func NewServer(ctrl Controller, st *stats.StatsManager) *Server {
	s := &Server{ctrl: ctrl, stats: st}
	ctrl.OnVisibility(func(active types.WindowID, managed, _ bool) {
		s.emitSignal("FocusChanged", uint32(active), managed)
	})
	ctrl.OnBroadcastChanged(func(on bool) {
		s.emitSignal("BroadcastChanged", on)
	})
	return s
}

// Start starts the D-Bus server
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Request name
	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name %s already taken", dbusServiceName)
	}

	// Export object
	if err := conn.Export(s, dbusObjectPath, dbusInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	// Export introspection
	if err := conn.Export(introspect.NewIntrospectable(introspection()), dbusObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

func introspection() *introspect.Node {
	return &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{{
			Name: dbusInterface,
			Methods: []introspect.Method{
				{
					Name: "SetBroadcastEnabled",
					Args: []introspect.Arg{{Name: "enabled", Type: "b", Direction: "in"}},
				},
				{
					Name: "ToggleBroadcast",
					Args: []introspect.Arg{{Name: "enabled", Type: "b", Direction: "out"}},
				},
				{
					Name: "SetOverlayEnabled",
					Args: []introspect.Arg{{Name: "enabled", Type: "b", Direction: "in"}},
				},
				{
					Name: "SetInhibitKeys",
					Args: []introspect.Arg{{Name: "keys", Type: "as", Direction: "in"}},
				},
				{
					Name: "ReparseShortcuts",
					Args: []introspect.Arg{{Name: "invalid", Type: "as", Direction: "out"}},
				},
				{
					Name: "RefreshWindows",
					Args: []introspect.Arg{
						{Name: "pattern", Type: "s", Direction: "in"},
						{Name: "windows", Type: "au", Direction: "out"},
					},
				},
				{
					Name: "ApplyLayout",
					Args: []introspect.Arg{
						{Name: "mode", Type: "s", Direction: "in"},
						{Name: "width", Type: "i", Direction: "in"},
						{Name: "height", Type: "i", Direction: "in"},
					},
				},
				{
					Name: "GetStatus",
					Args: []introspect.Arg{
						{Name: "broadcast", Type: "b", Direction: "out"},
						{Name: "overlay", Type: "b", Direction: "out"},
						{Name: "active", Type: "u", Direction: "out"},
						{Name: "windows", Type: "au", Direction: "out"},
					},
				},
				{
					Name: "GetStats",
					Args: []introspect.Arg{{Name: "json", Type: "s", Direction: "out"}},
				},
			},
			Signals: []introspect.Signal{
				{
					Name: "FocusChanged",
					Args: []introspect.Arg{
						{Name: "active", Type: "u"},
						{Name: "managed", Type: "b"},
					},
				},
				{
					Name: "BroadcastChanged",
					Args: []introspect.Arg{{Name: "enabled", Type: "b"}},
				},
			},
		}},
	}
}

// Stop stops the D-Bus server
func (s *Server) Stop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
		logger.Infof("🔌 D-Bus service stopped")
	}
}

// SetBroadcastEnabled turns broadcasting on or off (D-Bus method)
func (s *Server) SetBroadcastEnabled(on bool) *dbus.Error {
	logger.Debugf("D-Bus: SetBroadcastEnabled(%v) called", on)
	s.ctrl.SetBroadcastEnabled(on)
	return nil
}

// ToggleBroadcast flips broadcasting and returns the new state (D-Bus method)
func (s *Server) ToggleBroadcast() (bool, *dbus.Error) {
	on := !s.ctrl.BroadcastEnabled()
	logger.Debugf("D-Bus: ToggleBroadcast called, now %v", on)
	s.ctrl.SetBroadcastEnabled(on)
	return on, nil
}

// SetOverlayEnabled shows or hides the overlay (D-Bus method)
func (s *Server) SetOverlayEnabled(on bool) *dbus.Error {
	s.ctrl.SetOverlayEnabled(on)
	return nil
}

// SetInhibitKeys replaces the keys that are never broadcast (D-Bus method)
func (s *Server) SetInhibitKeys(list []string) *dbus.Error {
	s.ctrl.SetInhibitKeys(list)
	return nil
}

// ReparseShortcuts reloads the shortcut table and returns the bindings
// that failed to parse (D-Bus method)
func (s *Server) ReparseShortcuts() ([]string, *dbus.Error) {
	invalid := s.ctrl.ReparseShortcuts()
	if invalid == nil {
		invalid = []string{}
	}
	return invalid, nil
}

// RefreshWindows rescans the managed windows. An empty pattern reuses the
// configured one (D-Bus method)
func (s *Server) RefreshWindows(pattern string) ([]uint32, *dbus.Error) {
	if pattern == "" {
		pattern = s.ctrl.Config().Pattern
	}
	ids, err := s.ctrl.RefreshWindows(pattern)
	if err != nil {
		logger.Errorf("D-Bus: Window refresh failed", err)
		return nil, dbus.MakeFailedError(err)
	}
	return toUint32(ids), nil
}

// ApplyLayout arranges the managed windows. width and height are only used
// by the grid layout (D-Bus method)
func (s *Server) ApplyLayout(mode string, width, height int32) *dbus.Error {
	logger.Debugf("D-Bus: ApplyLayout(%s, %d, %d) called", mode, width, height)
	if err := s.ctrl.ApplyLayout(types.LayoutMode(mode), int(width), int(height)); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetStatus returns the broadcast and overlay flags, the focused window and
// the managed windows (D-Bus method)
func (s *Server) GetStatus() (bool, bool, uint32, []uint32, *dbus.Error) {
	st := s.ctrl.Status()
	return st.Broadcast, st.Overlay, uint32(st.Active), toUint32(st.Windows), nil
}

// GetStats returns the broadcast statistics as JSON (D-Bus method)
func (s *Server) GetStats() (string, *dbus.Error) {
	if s.stats == nil {
		return "{}", nil
	}
	data, err := s.stats.GetStatsJSON()
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return data, nil
}

func toUint32(ids []types.WindowID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}

// emitSignal emits a D-Bus signal
func (s *Server) emitSignal(name string, args ...interface{}) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		logger.Debugf("D-Bus: Not emitting signal %s - no connection", name)
		return
	}

	signalPath := dbus.ObjectPath(dbusObjectPath)
	signalName := dbusInterface + "." + name

	if err := conn.Emit(signalPath, signalName, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
	} else {
		logger.Debugf("D-Bus: Emitted signal: %s", name)
	}
}
