package fileops

import (
	"github.com/godbus/dbus/v5"

	"github.com/filedesk/filecore/corefs"
	"github.com/filedesk/filecore/corelog"
)

// Inhibitor asks the host environment to hold off suspend and shutdown for
// the duration of a long operation, with a human-readable reason (spec.md
// §4.G's power-inhibition scaffolding). Logout is not inhibited: the lock
// taken is logind's "sleep:shutdown". Implemented against logind's
// org.freedesktop.login1.Manager.Inhibit, the standard mechanism every
// freedesktop-compliant desktop (GNOME, KDE, Sway) honors.
type Inhibitor struct {
	conn *dbus.Conn
}

// NewInhibitor connects to the system bus. Returns an error if no system
// bus is reachable (headless CI, containers without dbus) — callers
// should treat that as "inhibition unavailable" and proceed without it
// rather than failing the operation outright.
func NewInhibitor() (*Inhibitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, corefs.Wrap(corefs.KindBackendUnavailable, err)
	}
	return &Inhibitor{conn: conn}, nil
}

// Handle is the held inhibition lock; Release drops it, letting the system
// suspend/shut down again.
type Handle struct {
	fd dbus.UnixFD
}

// Inhibit takes out a "sleep:shutdown" inhibitor lock with why as the
// human-readable reason logind surfaces to the user if it is overridden.
func (i *Inhibitor) Inhibit(who, why string) (*Handle, error) {
	obj := i.conn.Object("org.freedesktop.login1", dbus.ObjectPath("/org/freedesktop/login1"))
	var fd dbus.UnixFD
	call := obj.Call("org.freedesktop.login1.Manager.Inhibit", 0,
		"sleep:shutdown", who, why, "delay")
	if call.Err != nil {
		return nil, corefs.Wrap(corefs.KindBackendUnavailable, call.Err)
	}
	if err := call.Store(&fd); err != nil {
		return nil, corefs.Wrap(corefs.KindBackendUnavailable, err)
	}
	return &Handle{fd: fd}, nil
}

// Release closes the inhibitor file descriptor, ending the hold.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	if err := unixClose(int(h.fd)); err != nil {
		corelog.Debugf(nil, "fileops: failed to release inhibitor fd: %v", err)
	}
}

// Close disconnects from the system bus.
func (i *Inhibitor) Close() error {
	return i.conn.Close()
}

// noopInhibitor is used wherever an Inhibitor could not be constructed
// (headless environments), so operation code never has to special-case a
// nil *Inhibitor.
type noopInhibitor struct{}

func (noopInhibitor) Inhibit(who, why string) (*Handle, error) { return nil, nil }
func (noopInhibitor) Close() error                              { return nil }

// PowerInhibitor is the capability fileops operations actually depend on,
// satisfied by both *Inhibitor and noopInhibitor.
type PowerInhibitor interface {
	Inhibit(who, why string) (*Handle, error)
}

// NewPowerInhibitor returns a real Inhibitor if the system bus is
// reachable, or a silent no-op otherwise.
func NewPowerInhibitor() PowerInhibitor {
	inh, err := NewInhibitor()
	if err != nil {
		corelog.Debugf(nil, "fileops: power inhibition unavailable: %v", err)
		return noopInhibitor{}
	}
	return inh
}

// beginInhibit takes out an inhibitor lock for the duration of a long
// operation, if ops carries one. A failed Inhibit call is logged and
// otherwise ignored: the operation proceeds uninhibited rather than
// failing over a suspend/shutdown guard. The returned Handle's Release is
// nil-safe, so callers can unconditionally `defer beginInhibit(ops, why).Release()`.
func beginInhibit(ops *Ops, why string) *Handle {
	if ops.Inhibitor == nil {
		return nil
	}
	h, err := ops.Inhibitor.Inhibit("filecore", why)
	if err != nil {
		corelog.Debugf(nil, "fileops: inhibit failed, proceeding without it: %v", err)
		return nil
	}
	return h
}
