//go:build !windows

package ipc

import (
	"errors"
	"net"
	"time"
)

// The Named Pipe transport is Windows-only in this project. These stubs keep
// the rest of the codebase (and its tests) portable.

var errPipeUnsupported = errors.New("ipc: named pipes are unsupported on this platform")

// dialPipe is unsupported on non-Windows platforms.
func dialPipe(string, *time.Duration) (net.Conn, error) {
	return nil, errPipeUnsupported
}

// listenPipeWithCurrentUserDACL is unsupported on non-Windows platforms.
func listenPipeWithCurrentUserDACL(string) (net.Listener, error) {
	return nil, errPipeUnsupported
}
