//go:build !linux && !freebsd

package klog

import "github.com/squealog/squealogd/internal/record"

// Reader is a stub on platforms without a readable kernel log device.
type Reader struct{}

// Open reports the capability as absent.
func Open() (*Reader, error) { return nil, nil }

// FD is never called; no reader is ever constructed here.
func (r *Reader) FD() int { return -1 }

// Close is never called; no reader is ever constructed here.
func (r *Reader) Close() error { return nil }

// Decode produces no records.
func (r *Reader) Decode([]byte) []*record.Record { return nil }
