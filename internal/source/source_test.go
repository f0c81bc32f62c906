package source

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "udp", NetworkDatagram.String())
	assert.Equal(t, "unix", LocalDatagram.String())
	assert.Equal(t, "kernel", KernelDevice.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestFromEnvironmentAbsent(t *testing.T) {
	t.Setenv(listenPIDEnv, "")
	t.Setenv(listenFDsEnv, "")

	sources, err := FromEnvironment()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestFromEnvironmentOtherProcess(t *testing.T) {
	// Activation aimed at a different pid is silently ignored, per the
	// protocol.
	t.Setenv(listenPIDEnv, strconv.Itoa(os.Getpid()+1))
	t.Setenv(listenFDsEnv, "1")

	sources, err := FromEnvironment()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestFromEnvironmentBadCount(t *testing.T) {
	t.Setenv(listenPIDEnv, strconv.Itoa(os.Getpid()))
	t.Setenv(listenFDsEnv, "zero")

	_, err := FromEnvironment()
	assert.Error(t, err)
}

func TestFromEnvironmentNameCountMismatch(t *testing.T) {
	t.Setenv(listenPIDEnv, strconv.Itoa(os.Getpid()))
	t.Setenv(listenFDsEnv, "2")
	t.Setenv(listenNamesEnv, "only-one")

	_, err := FromEnvironment()
	assert.Error(t, err)
}

func TestClassifyLocalDatagram(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	src, err := classify(fds[0], "devlog")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "devlog", src.Name)
	assert.Equal(t, LocalDatagram, src.Kind)
	assert.Equal(t, fds[0], src.FD)
}

func TestClassifyNetworkDatagram(t *testing.T) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)

	src, err := classify(fd, "syslog-udp")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, NetworkDatagram, src.Kind)
}

func TestClassifyRejectsStreamSocket(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	_, err = classify(fds[0], "stream")
	assert.ErrorContains(t, err, "not a datagram socket")
}
