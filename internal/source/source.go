// Package source models the daemon's input inventory: named, pre-opened
// readable handles classified by protocol kind. The daemon never binds
// sockets itself; datagram sockets arrive via socket activation and the
// kernel device is opened by the klog package.
package source

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies how a source's payload is framed and parsed.
type Kind int

const (
	// NetworkDatagram is a UDP socket; one datagram per read.
	NetworkDatagram Kind = iota
	// LocalDatagram is a Unix datagram socket (/dev/log style).
	LocalDatagram
	// KernelDevice is the platform kernel log device.
	KernelDevice
)

func (k Kind) String() string {
	switch k {
	case NetworkDatagram:
		return "udp"
	case LocalDatagram:
		return "unix"
	case KernelDevice:
		return "kernel"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source is one registered input. The name is caller-assigned and
// appears verbatim on every record ingested from it. The event loop
// owns FD exclusively from registration until deregistration; the two
// always happen together.
type Source struct {
	Name string
	Kind Kind
	FD   int
}

// Close releases the handle.
func (s *Source) Close() error {
	if err := unix.Close(s.FD); err != nil {
		return fmt.Errorf("close source %q: %w", s.Name, err)
	}
	return nil
}
