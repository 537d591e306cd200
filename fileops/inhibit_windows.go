//go:build windows

package fileops

// logind/D-Bus power inhibition has no Windows equivalent; Inhibitor is
// never constructed there (NewPowerInhibitor's dbus.ConnectSystemBus call
// fails immediately and callers fall back to noopInhibitor), but this stub
// keeps the package building on every platform this module targets.
func unixClose(fd int) error { return nil }
