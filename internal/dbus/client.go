package dbus

import (
	"fmt"

	"github.com/dooshek/multiboxer/internal/types"
	"github.com/godbus/dbus/v5"
)

// RemoteStatus is the state reported by a running instance.
type RemoteStatus struct {
	Broadcast bool
	Overlay   bool
	Active    types.WindowID
	Windows   []types.WindowID
}

// Client talks to a running multiboxer over the session bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the session bus. It does not check that the service is
// running; the first call does.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, obj: conn.Object(dbusServiceName, dbusObjectPath)}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) method(name string) string {
	return dbusInterface + "." + name
}

func (c *Client) Status() (*RemoteStatus, error) {
	var (
		broadcast, overlay bool
		active             uint32
		windows            []uint32
	)
	err := c.obj.Call(c.method("GetStatus"), 0).Store(&broadcast, &overlay, &active, &windows)
	if err != nil {
		return nil, fmt.Errorf("GetStatus failed: %w", err)
	}
	st := &RemoteStatus{Broadcast: broadcast, Overlay: overlay, Active: types.WindowID(active)}
	for _, id := range windows {
		st.Windows = append(st.Windows, types.WindowID(id))
	}
	return st, nil
}

// Stats returns the broadcast statistics as JSON.
func (c *Client) Stats() (string, error) {
	var out string
	if err := c.obj.Call(c.method("GetStats"), 0).Store(&out); err != nil {
		return "", fmt.Errorf("GetStats failed: %w", err)
	}
	return out, nil
}

// ToggleBroadcast flips broadcasting and returns the new state.
func (c *Client) ToggleBroadcast() (bool, error) {
	var on bool
	if err := c.obj.Call(c.method("ToggleBroadcast"), 0).Store(&on); err != nil {
		return false, fmt.Errorf("ToggleBroadcast failed: %w", err)
	}
	return on, nil
}

// RefreshWindows asks the instance to rescan. An empty pattern reuses the
// configured one.
func (c *Client) RefreshWindows(pattern string) ([]types.WindowID, error) {
	var ids []uint32
	if err := c.obj.Call(c.method("RefreshWindows"), 0, pattern).Store(&ids); err != nil {
		return nil, fmt.Errorf("RefreshWindows failed: %w", err)
	}
	out := make([]types.WindowID, len(ids))
	for i, id := range ids {
		out[i] = types.WindowID(id)
	}
	return out, nil
}

// ApplyLayout arranges the instance's windows.
func (c *Client) ApplyLayout(mode types.LayoutMode, width, height int) error {
	if err := c.obj.Call(c.method("ApplyLayout"), 0, string(mode), int32(width), int32(height)).Err; err != nil {
		return fmt.Errorf("ApplyLayout failed: %w", err)
	}
	return nil
}
