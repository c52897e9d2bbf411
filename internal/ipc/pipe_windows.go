//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialPipe connects to the Named Pipe as a client.
func dialPipe(pipeName string, timeout *time.Duration) (net.Conn, error) {
	return winio.DialPipe(pipeName, timeout)
}

// listenPipeWithCurrentUserDACL creates a Named Pipe listener restricted to the
// current user. The DACL grants full access only to SYSTEM and the current
// user's SID, preventing other local users from connecting.
func listenPipeWithCurrentUserDACL(pipeName string) (net.Listener, error) {
	securityDescriptor, err := pipeSecurityDescriptor()
	if err != nil {
		return nil, err
	}
	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
		MessageMode:        false,
		InputBufferSize:    int32(maxPipeRequestBytes),
		OutputBufferSize:   int32(maxPipeResponseBytes),
	})
}
