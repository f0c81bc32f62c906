//go:build linux

package klog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/squealog/squealogd/internal/record"
)

// DevicePath is the kernel log device on Linux.
const DevicePath = "/dev/kmsg"

// Reader decodes /dev/kmsg records. Each read(2) on the device returns
// exactly one record of the form
//
//	pri,seq,timestamp_us[,flags];message
//
// optionally followed by continuation lines starting with a space.
// Timestamps are microseconds since boot; the reader captures the boot
// wall-clock time once at open so records carry absolute times.
type Reader struct {
	fd   int
	boot time.Time
}

// Open opens the kernel log device nonblocking. Returns (nil, nil) when
// the device does not exist (the capability is absent, not an error).
func Open() (*Reader, error) {
	fd, err := unix.Open(DevicePath, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if err == unix.ENOENT {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", DevicePath, err)
	}
	boot, err := bootWallTime()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Reader{fd: fd, boot: boot}, nil
}

// FD returns the device file descriptor for readiness registration.
func (r *Reader) FD() int { return r.fd }

// Close releases the device.
func (r *Reader) Close() error {
	if err := unix.Close(r.fd); err != nil {
		return fmt.Errorf("close %s: %w", DevicePath, err)
	}
	return nil
}

// Decode converts the payload of one device read into records. On Linux
// a read returns a single record; continuation lines never appear in the
// same read.
func (r *Reader) Decode(data []byte) []*record.Record {
	rec, ok := ParseKmsg(strings.TrimSuffix(string(data), "\n"), r.boot)
	if !ok {
		return nil
	}
	return []*record.Record{rec}
}

// ParseKmsg decodes one /dev/kmsg line. Continuation lines (leading
// space) and malformed headers yield (nil, false); unlike datagram
// input, a kernel record without its device framing carries nothing
// worth a fallback record.
func ParseKmsg(line string, boot time.Time) (*record.Record, bool) {
	if line == "" || line[0] == ' ' {
		return nil, false
	}
	semi := strings.IndexByte(line, ';')
	if semi < 0 {
		return nil, false
	}

	fields := strings.Split(line[:semi], ",")
	if len(fields) < 3 {
		return nil, false
	}
	pri, err := strconv.Atoi(fields[0])
	if err != nil || pri < 0 || pri > record.MaxPriority {
		return nil, false
	}
	usec, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}

	facility, severity := record.DecomposePriority(pri)
	ts := boot.Add(time.Duration(usec) * time.Microsecond)
	return &record.Record{
		Facility:  &facility,
		Severity:  severity,
		Timestamp: &ts,
		Hostname:  KernelIdentity,
		AppName:   KernelIdentity,
		Message:   unescapeKmsg(line[semi+1:]),
	}, true
}

// unescapeKmsg reverses the \xHH escaping the device applies to
// unprintable message bytes.
func unescapeKmsg(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// bootWallTime derives the wall-clock instant of boot from
// CLOCK_BOOTTIME (which counts time since boot including suspend).
func bootWallTime() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clock_gettime(CLOCK_BOOTTIME): %w", err)
	}
	return time.Now().Add(-time.Duration(ts.Nano())), nil
}
