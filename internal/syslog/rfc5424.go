package syslog

import (
	"strings"
	"time"

	"github.com/squealog/squealogd/internal/record"
)

// Maximum field lengths from the RFC 5424 ABNF.
const (
	maxHostnameLen = 255
	maxAppNameLen  = 48
	maxProcIDLen   = 128
	maxMsgIDLen    = 32
	maxSDNameLen   = 32
)

// parseRFC5424 attempts a strict structured-syslog parse. Returns
// (nil, false) when the input does not conform; it never produces a
// partial record.
func parseRFC5424(in string) (*record.Record, bool) {
	c := &cursor{s: in}

	pri, ok := c.priority()
	if !ok {
		return nil, false
	}
	if !c.version() {
		return nil, false
	}

	facility, severity := record.DecomposePriority(pri)
	rec := &record.Record{Facility: &facility, Severity: severity}

	if !c.space() {
		return nil, false
	}
	ts, ok := c.timestamp()
	if !ok {
		return nil, false
	}
	rec.Timestamp = ts

	if rec.Hostname, ok = c.header(maxHostnameLen); !ok {
		return nil, false
	}
	if rec.AppName, ok = c.header(maxAppNameLen); !ok {
		return nil, false
	}
	if rec.ProcID, ok = c.header(maxProcIDLen); !ok {
		return nil, false
	}
	if rec.MsgID, ok = c.header(maxMsgIDLen); !ok {
		return nil, false
	}

	if !c.space() {
		return nil, false
	}
	if rec.StructuredData, ok = c.structuredData(); !ok {
		return nil, false
	}

	// Optional: a single SP then the free-text message.
	if c.eof() {
		return rec, true
	}
	if !c.space() {
		return nil, false
	}
	rec.Message = strings.TrimPrefix(c.rest(), "\ufeff")
	return rec, true
}

// cursor is a byte-position reader over the message. All parse methods
// advance only on success.
type cursor struct {
	s string
	i int
}

func (c *cursor) eof() bool { return c.i >= len(c.s) }

func (c *cursor) rest() string { return c.s[c.i:] }

func (c *cursor) take(b byte) bool {
	if c.eof() || c.s[c.i] != b {
		return false
	}
	c.i++
	return true
}

func (c *cursor) space() bool { return c.take(' ') }

// priority parses "<" 1*3DIGIT ">" with a value of at most 191.
func (c *cursor) priority() (int, bool) {
	if !c.take('<') {
		return 0, false
	}
	pri, n, ok := c.digits(3)
	if !ok || pri > record.MaxPriority {
		return 0, false
	}
	// "<00>" style padding is not valid PRI.
	if n > 1 && c.s[c.i-n] == '0' {
		return 0, false
	}
	if !c.take('>') {
		return 0, false
	}
	return pri, true
}

// version parses NONZERO-DIGIT 0*2DIGIT. The value is checked for form
// but not persisted; any structured-syslog version shares this grammar.
func (c *cursor) version() bool {
	v, n, ok := c.digits(3)
	return ok && v >= 1 && c.s[c.i-n] != '0'
}

// digits consumes 1..max ASCII digits, returning the value and how many
// were consumed.
func (c *cursor) digits(max int) (value, n int, ok bool) {
	for n < max && c.i < len(c.s) && c.s[c.i] >= '0' && c.s[c.i] <= '9' {
		value = value*10 + int(c.s[c.i]-'0')
		c.i++
		n++
	}
	return value, n, n > 0
}

// token consumes a run of printable US-ASCII up to the next space or end
// of input.
func (c *cursor) token(max int) (string, bool) {
	start := c.i
	for c.i < len(c.s) && c.s[c.i] != ' ' {
		ch := c.s[c.i]
		if ch < 33 || ch > 126 {
			return "", false
		}
		c.i++
	}
	n := c.i - start
	if n == 0 || n > max {
		return "", false
	}
	return c.s[start:c.i], true
}

// header consumes SP then a HOSTNAME/APP-NAME/PROCID/MSGID style field.
// The nil value "-" maps to the empty string.
func (c *cursor) header(max int) (string, bool) {
	if !c.space() {
		return "", false
	}
	tok, ok := c.token(max)
	if !ok {
		return "", false
	}
	if tok == "-" {
		return "", true
	}
	return tok, true
}

// timestamp parses NILVALUE or an RFC 3339 timestamp.
func (c *cursor) timestamp() (*time.Time, bool) {
	tok, ok := c.token(len(c.s))
	if !ok {
		return nil, false
	}
	if tok == "-" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339Nano, tok)
	if err != nil {
		return nil, false
	}
	return &ts, true
}

// structuredData parses NILVALUE or one or more SD-ELEMENTs.
func (c *cursor) structuredData() (map[string]map[string]string, bool) {
	if c.take('-') {
		return nil, true
	}
	if c.eof() || c.s[c.i] != '[' {
		return nil, false
	}
	sd := make(map[string]map[string]string)
	for !c.eof() && c.s[c.i] == '[' {
		if !c.sdElement(sd) {
			return nil, false
		}
	}
	return sd, true
}

// sdElement parses "[" SD-ID *(SP SD-PARAM) "]".
func (c *cursor) sdElement(sd map[string]map[string]string) bool {
	if !c.take('[') {
		return false
	}
	id, ok := c.sdName()
	if !ok {
		return false
	}
	params := make(map[string]string)
	for c.space() {
		name, ok := c.sdName()
		if !ok {
			return false
		}
		if !c.take('=') {
			return false
		}
		value, ok := c.sdValue()
		if !ok {
			return false
		}
		params[name] = value
	}
	if !c.take(']') {
		return false
	}
	sd[id] = params
	return true
}

// sdName parses an SD-NAME: 1..32 printable US-ASCII excluding '=', SP,
// ']' and '"'.
func (c *cursor) sdName() (string, bool) {
	start := c.i
	for c.i < len(c.s) {
		ch := c.s[c.i]
		if ch < 33 || ch > 126 || ch == '=' || ch == ']' || ch == '"' {
			break
		}
		c.i++
	}
	n := c.i - start
	if n == 0 || n > maxSDNameLen {
		return "", false
	}
	return c.s[start:c.i], true
}

// sdValue parses a double-quoted PARAM-VALUE honoring the \" \\ \]
// escapes.
func (c *cursor) sdValue() (string, bool) {
	if !c.take('"') {
		return "", false
	}
	var b strings.Builder
	for c.i < len(c.s) {
		ch := c.s[c.i]
		switch ch {
		case '"':
			c.i++
			return b.String(), true
		case '\\':
			if c.i+1 >= len(c.s) {
				return "", false
			}
			next := c.s[c.i+1]
			if next == '"' || next == '\\' || next == ']' {
				b.WriteByte(next)
				c.i += 2
				continue
			}
			// Unknown escape: kept literally, as receivers conventionally do.
			b.WriteByte(ch)
			c.i++
		default:
			b.WriteByte(ch)
			c.i++
		}
	}
	return "", false
}
