package syslog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squealog/squealogd/internal/record"
)

// refTime is the fixed ingest time used for deterministic year
// resolution in tests.
var refTime = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestParseEmptyDatagramProducesNoRecord(t *testing.T) {
	for _, data := range [][]byte{nil, {}, []byte("\n"), []byte("\x00"), []byte("\r\n\x00")} {
		rec, ok := Parse(data, refTime)
		assert.False(t, ok, "input %q should be dropped", data)
		assert.Nil(t, rec)
	}
}

func TestParseNeverDropsNonEmptyInput(t *testing.T) {
	inputs := [][]byte{
		[]byte("<34>1 2003-10-11T22:14:15.003Z host app - - -"),
		[]byte("<13>Jan  1 00:00:00 host app: hi"),
		[]byte("no structure at all"),
		[]byte("\x00\x01\x02"),
		[]byte("<999>not a priority"),
		[]byte("<34>"),
		[]byte("{\"json\": \"blob\"}"),
		{0xff, 0xfe, 0xfd},
	}
	for _, data := range inputs {
		rec, ok := Parse(data, refTime)
		require.True(t, ok, "input %q must produce a record", data)
		require.NotNil(t, rec)
		assert.True(t, rec.Severity.Valid(), "severity always populated for %q", data)
		assert.NotNil(t, rec.Message, "message never absent")
	}
}

func TestParseStrictRoundTrip(t *testing.T) {
	in := `<165>1 2003-10-11T22:14:15.003Z mymachine.example.com evntslog 1370 ID47 [exampleSDID@32473 iut="3" eventSource="Application" eventID="1011"] An application event log entry`
	rec, ok := Parse([]byte(in), refTime)
	require.True(t, ok)

	require.NotNil(t, rec.Facility)
	assert.Equal(t, record.Facility(20), *rec.Facility)
	assert.Equal(t, record.Notice, rec.Severity)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, time.Date(2003, time.October, 11, 22, 14, 15, 3_000_000, time.UTC), rec.Timestamp.UTC())
	assert.Equal(t, "mymachine.example.com", rec.Hostname)
	assert.Equal(t, "evntslog", rec.AppName)
	assert.Equal(t, "1370", rec.ProcID)
	assert.Equal(t, "ID47", rec.MsgID)
	assert.Equal(t, map[string]map[string]string{
		"exampleSDID@32473": {
			"iut":         "3",
			"eventSource": "Application",
			"eventID":     "1011",
		},
	}, rec.StructuredData)
	assert.Equal(t, "An application event log entry", rec.Message)
	assert.Nil(t, rec.Raw, "a clean structured parse keeps no forensic copy")
}

func TestParseStrictNilFields(t *testing.T) {
	rec, ok := Parse([]byte("<34>1 - - - - - -"), refTime)
	require.True(t, ok)
	require.NotNil(t, rec.Facility)
	assert.Equal(t, record.Facility(4), *rec.Facility)
	assert.Equal(t, record.Critical, rec.Severity)
	assert.Nil(t, rec.Timestamp)
	assert.Empty(t, rec.Hostname)
	assert.Empty(t, rec.AppName)
	assert.Empty(t, rec.ProcID)
	assert.Empty(t, rec.MsgID)
	assert.Nil(t, rec.StructuredData)
	assert.Empty(t, rec.Message)
}

func TestParseStrictBOMStripped(t *testing.T) {
	rec, ok := Parse([]byte("<34>1 - - - - - - \ufeffhello"), refTime)
	require.True(t, ok)
	assert.Equal(t, "hello", rec.Message)
}

func TestParseStrictSDEscapes(t *testing.T) {
	in := `<34>1 - - - - - [ex@1 k="a\"b\\c\]d"] m`
	rec, ok := Parse([]byte(in), refTime)
	require.True(t, ok)
	assert.Equal(t, `a"b\c]d`, rec.StructuredData["ex@1"]["k"])
	assert.Equal(t, "m", rec.Message)
}

func TestParseStrictMultipleSDElements(t *testing.T) {
	in := `<34>1 - - - - - [a@1 x="1"][b@2 y="2"]`
	rec, ok := Parse([]byte(in), refTime)
	require.True(t, ok)
	assert.Len(t, rec.StructuredData, 2)
	assert.Equal(t, "1", rec.StructuredData["a@1"]["x"])
	assert.Equal(t, "2", rec.StructuredData["b@2"]["y"])
}

func TestParseStrictRejectsMalformedHeader(t *testing.T) {
	// Each of these must fall through to a lenient or fallback record,
	// not a strict one: structured data would have been parsed.
	inputs := []string{
		"<34>1 not-a-timestamp host app - - -",
		"<192>1 - - - - - -", // PRI out of range
		"<34>0 - - - - - -",  // version must be nonzero
		"<04>1 - - - - - -",  // zero-padded PRI
	}
	for _, in := range inputs {
		rec, ok := Parse([]byte(in), refTime)
		require.True(t, ok, "input %q", in)
		assert.Nil(t, rec.StructuredData, "input %q must not parse strictly", in)
		assert.NotNil(t, rec.Raw, "degraded records carry raw bytes for %q", in)
	}
}

func TestParseLegacyScenario(t *testing.T) {
	rec, ok := Parse([]byte("<13>Jan 1 00:00:00 host app[123]: hello"), refTime)
	require.True(t, ok)

	require.NotNil(t, rec.Facility)
	assert.Equal(t, record.Facility(1), *rec.Facility)
	assert.Equal(t, record.Severity(5), rec.Severity)
	assert.Equal(t, "host", rec.Hostname)
	assert.Equal(t, "app", rec.AppName)
	assert.Equal(t, "123", rec.ProcID)
	assert.Equal(t, "hello", rec.Message)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), *rec.Timestamp)
}

func TestParseLegacyPaddedDay(t *testing.T) {
	rec, ok := Parse([]byte("<13>Jun  2 08:15:00 host app: padded"), refTime)
	require.True(t, ok)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, time.Date(2026, time.June, 2, 8, 15, 0, 0, time.UTC), *rec.Timestamp)
	assert.Equal(t, "padded", rec.Message)
}

func TestParseLegacyYearRollsBackAcrossNewYear(t *testing.T) {
	jan := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	rec, ok := Parse([]byte("<13>Dec 31 23:59:59 host app: late"), jan)
	require.True(t, ok)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, 2025, rec.Timestamp.Year())
}

func TestParseLegacyWithoutTimestamp(t *testing.T) {
	rec, ok := Parse([]byte("<13>no timestamp here"), refTime)
	require.True(t, ok)
	require.NotNil(t, rec.Facility)
	assert.Equal(t, record.Severity(5), rec.Severity)
	assert.Nil(t, rec.Timestamp)
}

func TestParseLegacyRFC3339Timestamp(t *testing.T) {
	rec, ok := Parse([]byte("<4>2026-02-03T04:05:06+01:00 gateway kernel: oops"), refTime)
	require.True(t, ok)
	require.NotNil(t, rec.Timestamp)
	assert.Equal(t, "gateway", rec.Hostname)
	assert.Equal(t, "kernel", rec.AppName)
	assert.Equal(t, "oops", rec.Message)
}

func TestParseGarbageScenario(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02}
	rec, ok := Parse(data, refTime)
	require.True(t, ok)
	assert.Equal(t, record.DefaultSeverity, rec.Severity)
	assert.Equal(t, data, rec.Raw)
	assert.Nil(t, rec.Facility)
}

func TestParseInvalidUTF8DecodedAsLatin1(t *testing.T) {
	// 0xC3 0x28 is not valid UTF-8; Latin-1 maps it to "Ã(".
	rec, ok := Parse([]byte{0xc3, 0x28}, refTime)
	require.True(t, ok)
	assert.Equal(t, "Ã(", rec.Message)
	assert.Equal(t, []byte{0xc3, 0x28}, rec.Raw)
}

func TestParseRawIsACopy(t *testing.T) {
	buf := []byte("garbage with no grammar at all \xff")
	rec, ok := Parse(buf, refTime)
	require.True(t, ok)
	buf[0] = 'X'
	assert.Equal(t, byte('g'), rec.Raw[0], "raw must not alias the caller's buffer")
}

func TestParseDeterministic(t *testing.T) {
	data := []byte("<13>Jan 1 00:00:00 host app[123]: hello")
	a, _ := Parse(data, refTime)
	b, _ := Parse(data, refTime)
	assert.Equal(t, a, b)
}

// snapshot is the stable JSON shape golden files assert against.
type snapshot struct {
	Facility       *record.Facility             `json:"facility,omitempty"`
	Severity       record.Severity              `json:"severity"`
	Timestamp      string                       `json:"timestamp,omitempty"`
	Hostname       string                       `json:"hostname,omitempty"`
	AppName        string                       `json:"app_name,omitempty"`
	ProcID         string                       `json:"proc_id,omitempty"`
	MsgID          string                       `json:"msg_id,omitempty"`
	StructuredData map[string]map[string]string `json:"structured_data,omitempty"`
	Message        string                       `json:"message"`
	Raw            string                       `json:"raw,omitempty"`
}

func snapshotOf(t *testing.T, rec *record.Record) []byte {
	t.Helper()
	s := snapshot{
		Facility:       rec.Facility,
		Severity:       rec.Severity,
		Hostname:       rec.Hostname,
		AppName:        rec.AppName,
		ProcID:         rec.ProcID,
		MsgID:          rec.MsgID,
		StructuredData: rec.StructuredData,
		Message:        rec.Message,
		Raw:            string(rec.Raw),
	}
	if rec.Timestamp != nil {
		s.Timestamp = rec.Timestamp.Format(time.RFC3339Nano)
	}
	out, err := json.MarshalIndent(s, "", "  ")
	require.NoError(t, err)
	return out
}

func TestParseGolden(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"rfc5424_full", []byte(`<165>1 2003-10-11T22:14:15.003Z mymachine.example.com evntslog 1370 ID47 [exampleSDID@32473 iut="3" eventSource="Application" eventID="1011"] An application event log entry`)},
		{"rfc5424_minimal", []byte("<34>1 - - - - - -")},
		{"rfc3164_legacy", []byte("<13>Jan 1 00:00:00 host app[123]: hello")},
		{"rfc3164_iso_timestamp", []byte("<4>2026-02-03T04:05:06+01:00 gateway kernel: oops")},
		{"fallback_garbage", []byte{0x00, 0x01, 0x02}},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Parse(tt.input, refTime)
			require.True(t, ok)
			g.Assert(t, tt.name, snapshotOf(t, rec))
		})
	}
}
