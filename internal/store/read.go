package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/squealog/squealogd/internal/record"
)

// StoredRecord is a persisted record together with its identity key.
type StoredRecord struct {
	ID int64
	record.Record
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Tail returns the most recent n records in insertion order. Returns an
// empty slice (not nil) when the store holds no records.
//
// Reading is a viewer/test concern; the daemon itself only appends.
func (s *Store) Tail(ctx context.Context, n int) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, received_at, source, facility, severity, time, hostname, appname, procid, msgid, structured_data, msg, raw
		FROM (
			SELECT * FROM logs ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []StoredRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (StoredRecord, error) {
	var (
		rec        StoredRecord
		receivedAt string
		facility   sql.NullInt64
		severity   int
		timestamp  sql.NullString
		hostname   sql.NullString
		appname    sql.NullString
		procid     sql.NullString
		msgid      sql.NullString
		structured sql.NullString
	)
	err := rows.Scan(&rec.ID, &receivedAt, &rec.SourceName, &facility, &severity,
		&timestamp, &hostname, &appname, &procid, &msgid, &structured, &rec.Message, &rec.Raw)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("scan record: %w", err)
	}

	if rec.ReceivedAt, err = time.Parse(timeFormat, receivedAt); err != nil {
		return StoredRecord{}, fmt.Errorf("parse received_at: %w", err)
	}
	if facility.Valid {
		f := record.Facility(facility.Int64)
		rec.Facility = &f
	}
	rec.Severity = record.Severity(severity)
	if timestamp.Valid {
		ts, err := time.Parse(timeFormat, timestamp.String)
		if err != nil {
			return StoredRecord{}, fmt.Errorf("parse time: %w", err)
		}
		rec.Timestamp = &ts
	}
	rec.Hostname = hostname.String
	rec.AppName = appname.String
	rec.ProcID = procid.String
	rec.MsgID = msgid.String
	if structured.Valid {
		if err := json.Unmarshal([]byte(structured.String), &rec.StructuredData); err != nil {
			return StoredRecord{}, fmt.Errorf("parse structured data: %w", err)
		}
	}

	return rec, nil
}
