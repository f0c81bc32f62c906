//go:build linux

package klog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squealog/squealogd/internal/record"
)

var bootTime = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func TestParseKmsg(t *testing.T) {
	rec, ok := ParseKmsg("6,339,5140900,-;NET: Registered protocol family 10", bootTime)
	require.True(t, ok)

	require.NotNil(t, rec.Facility)
	assert.Equal(t, record.KernelFacility, *rec.Facility)
	assert.Equal(t, record.Informational, rec.Severity)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, bootTime.Add(5140900*time.Microsecond), *rec.Timestamp)
	assert.Equal(t, KernelIdentity, rec.Hostname)
	assert.Equal(t, KernelIdentity, rec.AppName)
	assert.Equal(t, "NET: Registered protocol family 10", rec.Message)
}

func TestParseKmsgNonKernelFacility(t *testing.T) {
	// Userspace writes to /dev/kmsg carry their own facility.
	rec, ok := ParseKmsg("30,100,2000000;daemon says hi", bootTime)
	require.True(t, ok)
	assert.Equal(t, record.Facility(3), *rec.Facility)
	assert.Equal(t, record.Informational, rec.Severity)
}

func TestParseKmsgUnescapesMessageBytes(t *testing.T) {
	rec, ok := ParseKmsg(`6,1,0,-;tab\x09end`, bootTime)
	require.True(t, ok)
	assert.Equal(t, "tab\tend", rec.Message)
}

func TestParseKmsgSkipsContinuationLines(t *testing.T) {
	_, ok := ParseKmsg(" SUBSYSTEM=acpi", bootTime)
	assert.False(t, ok)
}

func TestParseKmsgRejectsMalformed(t *testing.T) {
	for _, line := range []string{"", "no semicolon here", "x,1,2;bad pri", "6,1;too few fields"} {
		_, ok := ParseKmsg(line, bootTime)
		assert.False(t, ok, "line %q", line)
	}
}

func TestDecodeSingleRecord(t *testing.T) {
	r := &Reader{boot: bootTime}
	recs := r.Decode([]byte("4,2,1000000,-;watchdog barked\n"))
	require.Len(t, recs, 1)
	assert.Equal(t, record.Warning, recs[0].Severity)
	assert.Equal(t, "watchdog barked", recs[0].Message)
}
