// Package record defines the normalized log record that every ingest path
// (syslog datagrams, kernel devices) produces and the store persists.
package record

import "time"

// Severity is the syslog severity level, 0 (emergency) through 7 (debug).
type Severity int

// Syslog severity levels per RFC 5424 table 2.
const (
	Emergency Severity = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Informational
	Debug
)

// DefaultSeverity is assigned when a message carries no priority
// information. Notice matches what legacy syslogds assume for untagged
// input (priority 13 = user.notice).
const DefaultSeverity = Notice

var severityNames = []string{
	"emergency", "alert", "critical", "error",
	"warning", "notice", "informational", "debug",
}

// String returns the conventional lowercase level name, or "unknown" for
// out-of-range values.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// Valid reports whether s is within the syslog severity range.
func (s Severity) Valid() bool {
	return s >= Emergency && s <= Debug
}

// Facility is the syslog facility number, 0 (kern) through 23 (local7).
type Facility int

// KernelFacility is the facility implied by kernel device sources.
const KernelFacility Facility = 0

// Valid reports whether f is within the syslog facility range.
func (f Facility) Valid() bool {
	return f >= 0 && f <= 23
}

// MaxPriority is the largest encodable PRI value (23*8 + 7).
const MaxPriority = 191

// DecomposePriority splits a syslog PRI value into facility and severity.
// The caller is responsible for range-checking pri against MaxPriority.
func DecomposePriority(pri int) (Facility, Severity) {
	return Facility(pri / 8), Severity(pri % 8)
}

// Record is the normalized, persisted unit of ingestion.
//
// Invariants enforced along the pipeline:
//   - ReceivedAt, SourceName, Severity and Message are always populated by
//     the time a record reaches the store. Message may be empty, never
//     "absent".
//   - Facility and Timestamp are nil when the source asserted no value;
//     consumers fall back to ReceivedAt for ordering.
//   - Raw holds the original datagram bytes whenever the structured fields
//     are a degraded or heuristic reading of the input.
type Record struct {
	ReceivedAt time.Time
	SourceName string

	Facility  *Facility
	Severity  Severity
	Timestamp *time.Time

	Hostname string
	AppName  string
	ProcID   string
	MsgID    string

	// StructuredData maps SD-ID to its parameter map. Empty (nil) unless
	// the message parsed as structured syslog with SD elements.
	StructuredData map[string]map[string]string

	Message string
	Raw     []byte
}
