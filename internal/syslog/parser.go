// Package syslog converts raw datagram bytes into normalized log records.
//
// Parsing is an ordered chain of side-effect-free passes:
//
//  1. Strict RFC 5424 ("structured syslog"). Requires a well-formed PRI
//     and version; everything after that is optional per the grammar.
//  2. Lenient RFC 3164 (legacy/BSD conventions). Best-effort recovery of
//     priority, timestamp, hostname and tag.
//  3. Total fallback. The bytes become the message verbatim with a
//     defaulted severity.
//
// A non-empty datagram always yields exactly one record; malformed input
// degrades, it is never dropped. Each pass works on its own view of the
// input so a rejected pass leaves nothing behind for the next one.
package syslog

import (
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/squealog/squealogd/internal/record"
)

// Parse converts one datagram into a record.
//
// ref is used only to resolve the year omitted by legacy timestamps; the
// caller passes the ingest time. Given identical bytes and ref the output
// is identical. The record's ReceivedAt and SourceName are left for the
// caller to stamp.
//
// Returns (nil, false) only for an empty datagram (after trailing NUL and
// newline trimming, a datagram-syslog convention).
func Parse(data []byte, ref time.Time) (*record.Record, bool) {
	trimmed := trimTrailing(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	text := decodeLossy(trimmed)

	if rec, ok := parseRFC5424(text); ok {
		// A clean structured parse needs no forensic copy unless the
		// payload had to be re-decoded.
		if !utf8.Valid(trimmed) {
			rec.Raw = cloneBytes(data)
		}
		return rec, true
	}

	if rec, ok := parseRFC3164(text, ref); ok {
		rec.Raw = cloneBytes(data)
		return rec, true
	}

	return &record.Record{
		Severity: record.DefaultSeverity,
		Message:  text,
		Raw:      cloneBytes(data),
	}, true
}

// trimTrailing strips trailing newline, carriage return and NUL bytes.
// Some legacy senders terminate datagrams with one or more of these.
func trimTrailing(data []byte) []byte {
	end := len(data)
	for end > 0 {
		switch data[end-1] {
		case '\n', '\r', 0x00:
			end--
		default:
			return data[:end]
		}
	}
	return data[:end]
}

// decodeLossy interprets the payload as UTF-8 when valid, otherwise as
// ISO 8859-1, which maps every byte to a character and therefore cannot
// fail. Invalid encoding never rejects a message.
func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// ISO 8859-1 decoding is total; keep the raw bytes if it ever
		// does fail.
		return string(data)
	}
	return string(decoded)
}

func cloneBytes(data []byte) []byte {
	// The event loop reuses its read buffer; the record must own its copy.
	return append([]byte(nil), data...)
}
