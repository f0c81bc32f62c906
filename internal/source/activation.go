package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Socket-activation environment, as set by the supervising process.
const (
	listenPIDEnv   = "LISTEN_PID"
	listenFDsEnv   = "LISTEN_FDS"
	listenNamesEnv = "LISTEN_FDNAMES"

	// Activated descriptors start immediately after stderr.
	listenFDStart = 3
)

// FromEnvironment discovers datagram sockets handed down by a
// socket-activation supervisor (the LISTEN_FDS protocol). Names from
// LISTEN_FDNAMES are applied verbatim; descriptors without names get a
// synthetic "fdN" name.
//
// Returns an empty inventory, not an error, when the environment
// carries no activation variables or they target another process.
// Returns an error for an inventory that names non-datagram sockets:
// the supervisor handed us something this daemon cannot serve.
func FromEnvironment() ([]Source, error) {
	pidVal := os.Getenv(listenPIDEnv)
	fdsVal := os.Getenv(listenFDsEnv)
	if pidVal == "" || fdsVal == "" {
		return nil, nil
	}
	pid, err := strconv.Atoi(pidVal)
	if err != nil || pid != os.Getpid() {
		return nil, nil
	}
	count, err := strconv.Atoi(fdsVal)
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("invalid %s=%q", listenFDsEnv, fdsVal)
	}

	var names []string
	if v := os.Getenv(listenNamesEnv); v != "" {
		names = strings.Split(v, ":")
		if len(names) != count {
			return nil, fmt.Errorf("%s lists %d names for %d descriptors", listenNamesEnv, len(names), count)
		}
	}

	sources := make([]Source, 0, count)
	for i := 0; i < count; i++ {
		fd := listenFDStart + i
		name := fmt.Sprintf("fd%d", fd)
		if names != nil {
			name = names[i]
		}
		src, err := classify(fd, name)
		if err != nil {
			return nil, fmt.Errorf("activated socket %q (fd %d): %w", name, fd, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// classify inspects an inherited descriptor and wraps it as a Source.
// Only datagram sockets are accepted; the descriptor is switched to
// nonblocking close-on-exec mode as a side effect.
func classify(fd int, name string) (Source, error) {
	soType, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return Source{}, fmt.Errorf("getsockopt SO_TYPE: %w", err)
	}
	if soType != unix.SOCK_DGRAM {
		return Source{}, fmt.Errorf("not a datagram socket (type %d)", soType)
	}

	domain, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DOMAIN)
	if err != nil {
		return Source{}, fmt.Errorf("getsockopt SO_DOMAIN: %w", err)
	}
	var kind Kind
	switch domain {
	case unix.AF_INET, unix.AF_INET6:
		kind = NetworkDatagram
	case unix.AF_UNIX:
		kind = LocalDatagram
	default:
		return Source{}, fmt.Errorf("unsupported socket domain %d", domain)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		return Source{}, fmt.Errorf("set nonblocking: %w", err)
	}
	unix.CloseOnExec(fd)

	return Source{Name: name, Kind: kind, FD: fd}, nil
}
