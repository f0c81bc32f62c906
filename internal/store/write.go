package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/squealog/squealogd/internal/record"
)

// timeFormat is how timestamps are encoded in TEXT columns. RFC 3339
// with nanoseconds sorts lexicographically and round-trips exactly.
const timeFormat = time.RFC3339Nano

// Append inserts one record. The insert is atomic and, together with
// the retention trigger, leaves the table within its bound on return.
// A failure means the record was not persisted; the caller decides
// whether to retry or escalate.
func (s *Store) Append(ctx context.Context, rec *record.Record) error {
	structured, err := marshalStructuredData(rec.StructuredData)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO logs
		(received_at, source, facility, severity, time, hostname, appname, procid, msgid, structured_data, msg, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ReceivedAt.UTC().Format(timeFormat),
		rec.SourceName,
		nullableFacility(rec.Facility),
		int(rec.Severity),
		nullableTime(rec.Timestamp),
		nullableString(rec.Hostname),
		nullableString(rec.AppName),
		nullableString(rec.ProcID),
		nullableString(rec.MsgID),
		structured,
		rec.Message,
		nullableBytes(rec.Raw),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	return nil
}

// marshalStructuredData serializes the SD mapping as JSON, or NULL when
// the record carries none. encoding/json sorts map keys, so the
// encoding is deterministic.
func marshalStructuredData(sd map[string]map[string]string) (sql.NullString, error) {
	if len(sd) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(sd)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal structured data: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableFacility(f *record.Facility) sql.NullInt64 {
	if f == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*f), Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
