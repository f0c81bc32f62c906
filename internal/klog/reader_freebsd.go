//go:build freebsd

package klog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/squealog/squealogd/internal/record"
)

// DevicePath is the kernel log device on FreeBSD.
const DevicePath = "/dev/klog"

// Reader decodes /dev/klog output: newline-separated lines of the form
//
//	<pri>[seconds] message
//
// where both the priority and the seconds-since-boot prefix are
// optional. The boot wall-clock time is captured once at open so
// records carry absolute times.
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

// Decode converts the payload of one device read into records. A single
// read may carry several newline-separated records.
func (r *Reader) Decode(data []byte) []*record.Record {
	var recs []*record.Record
	for _, line := range strings.Split(string(data), "\n") {
		if rec, ok := ParseKlog(line, r.boot); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

// ParseKlog decodes one /dev/klog line. The priority and relative
// timestamp prefixes are recovered when present; the remainder is the
// message, with severity defaulted and facility fixed to kernel when
// the line carries no priority.
func ParseKlog(line string, boot time.Time) (*record.Record, bool) {
	if line == "" {
		return nil, false
	}

	facility := record.KernelFacility
	rec := &record.Record{
		Facility: &facility,
		Severity: record.DefaultSeverity,
		Hostname: KernelIdentity,
		AppName:  KernelIdentity,
	}
	rest := line

	if strings.HasPrefix(rest, "<") {
		if end := strings.IndexByte(rest, '>'); end >= 2 {
			if pri, err := strconv.Atoi(rest[1:end]); err == nil && pri >= 0 && pri <= record.MaxPriority {
				f, s := record.DecomposePriority(pri)
				rec.Facility = &f
				rec.Severity = s
				rest = rest[end+1:]
			}
		}
	}

	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end >= 2 {
			if secs, err := strconv.ParseInt(rest[1:end], 10, 64); err == nil {
				ts := boot.Add(time.Duration(secs) * time.Second)
				rec.Timestamp = &ts
				rest = rest[end+1:]
			}
		}
	}

	rec.Message = strings.TrimSpace(rest)
	return rec, true
}

// bootWallTime derives the wall-clock instant of boot from the uptime
// clock.
func bootWallTime() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_UPTIME, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clock_gettime(CLOCK_UPTIME): %w", err)
	}
	return time.Now().Add(-time.Duration(ts.Nano())), nil
}
