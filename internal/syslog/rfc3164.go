package syslog

import (
	"strconv"
	"strings"
	"time"

	"github.com/squealog/squealogd/internal/record"
)

// legacyTimestampLayout matches the RFC 3164 header time. The _2 verb
// accepts both the space-padded ("Jan  2") and single-space ("Jan 2")
// day conventions seen in the wild.
const legacyTimestampLayout = "Jan _2 15:04:05"

// parseRFC3164 is the lenient legacy pass. It recovers whatever the
// common BSD conventions expose: an optional <PRI>, an optional
// timestamp (legacy or RFC 3339), an optional hostname and an optional
// "tag[pid]:" prefix. The pass applies only when it recovered at least a
// priority or a timestamp; otherwise the input falls through to the
// total fallback.
func parseRFC3164(in string, ref time.Time) (*record.Record, bool) {
	rec := &record.Record{Severity: record.DefaultSeverity}
	rest := in

	gotPRI := false
	if pri, remainder, ok := takePriority(rest); ok {
		facility, severity := record.DecomposePriority(pri)
		rec.Facility = &facility
		rec.Severity = severity
		rest = remainder
		gotPRI = true
	}

	gotTimestamp := false
	if ts, remainder, ok := takeLegacyTimestamp(rest, ref); ok {
		rec.Timestamp = &ts
		rest = remainder
		gotTimestamp = true
	} else if ts, remainder, ok := takeRFC3339Timestamp(rest); ok {
		rec.Timestamp = &ts
		rest = remainder
		gotTimestamp = true
	}

	if !gotPRI && !gotTimestamp {
		return nil, false
	}

	rest = strings.TrimLeft(rest, " ")
	if host, remainder, ok := takeHostname(rest); ok {
		rec.Hostname = host
		rest = strings.TrimLeft(remainder, " ")
	}
	if tag, pid, remainder, ok := takeTag(rest); ok {
		rec.AppName = tag
		rec.ProcID = pid
		rest = remainder
	}

	rec.Message = strings.TrimPrefix(rest, " ")
	return rec, true
}

// takePriority parses a leading "<NNN>". Unlike the strict pass, leading
// zeros are tolerated.
func takePriority(s string) (pri int, rest string, ok bool) {
	if !strings.HasPrefix(s, "<") {
		return 0, s, false
	}
	end := strings.IndexByte(s, '>')
	if end < 2 || end > 4 {
		return 0, s, false
	}
	pri, err := strconv.Atoi(s[1:end])
	if err != nil || pri < 0 || pri > record.MaxPriority {
		return 0, s, false
	}
	return pri, s[end+1:], true
}

// takeLegacyTimestamp parses the "Mmm dd hh:mm:ss" header. The legacy
// format omits both the year and the zone; the year is resolved against
// ref and the zone is taken as UTC.
func takeLegacyTimestamp(s string, ref time.Time) (ts time.Time, rest string, ok bool) {
	// Double-space day padding makes the stamp 15 characters, single
	// space 14. Longest match first.
	for _, n := range []int{15, 14} {
		if len(s) < n {
			continue
		}
		parsed, err := time.Parse(legacyTimestampLayout, s[:n])
		if err != nil {
			continue
		}
		if len(s) > n && s[n] != ' ' {
			continue
		}
		rest = s[n:]
		return resolveYear(parsed, ref), rest, true
	}
	return time.Time{}, s, false
}

// takeRFC3339Timestamp accepts an ISO timestamp in the legacy header
// position, a common modern-sender hybrid.
func takeRFC3339Timestamp(s string) (ts time.Time, rest string, ok bool) {
	tok := s
	if i := strings.IndexByte(s, ' '); i >= 0 {
		tok, rest = s[:i], s[i:]
	} else {
		rest = ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, tok)
	if err != nil {
		return time.Time{}, s, false
	}
	return parsed, rest, true
}

// resolveYear pins a yearless legacy timestamp to the year of ref,
// rolling back one year when that would place it in the future (a
// December message read in January).
func resolveYear(parsed, ref time.Time) time.Time {
	ts := time.Date(ref.Year(), parsed.Month(), parsed.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0, time.UTC)
	if ts.After(ref.AddDate(0, 0, 7)) {
		ts = ts.AddDate(-1, 0, 0)
	}
	return ts
}

// takeHostname consumes the next token as a hostname unless it looks
// like a tag ('[', ':' or '=' are the usual giveaways) or there is
// nothing after it that could be a message.
func takeHostname(s string) (host, rest string, ok bool) {
	if s == "" {
		return "", s, false
	}
	tok := s
	rest = ""
	if i := strings.IndexByte(s, ' '); i >= 0 {
		tok, rest = s[:i], s[i:]
	}
	if tok == "" || strings.ContainsAny(tok, "[:=") {
		return "", s, false
	}
	return tok, rest, true
}

// takeTag consumes "tag[pid]:" or "tag:" at the start of s. A single
// space after the colon is swallowed.
func takeTag(s string) (tag, pid, rest string, ok bool) {
	i := 0
	for i < len(s) && isTagChar(s[i]) {
		i++
	}
	if i == 0 || i > 32 {
		return "", "", s, false
	}
	tag = s[:i]
	rest = s[i:]

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 1 {
			return "", "", s, false
		}
		pid = rest[1:end]
		if pid == "" || !isDigits(pid) {
			return "", "", s, false
		}
		rest = rest[end+1:]
	}

	if !strings.HasPrefix(rest, ":") {
		return "", "", s, false
	}
	rest = strings.TrimPrefix(rest[1:], " ")
	return tag, pid, rest, true
}

func isTagChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '-', b == '.', b == '/':
		return true
	}
	return false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
