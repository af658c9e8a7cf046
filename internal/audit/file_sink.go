// Package audit implements the append-only audit log's durable sinks.
// FileSink writes JSONL to one uncompressed, unrotated file; PostgresSink is an
// optional additional sink for deployments that set DATABASE_URL, wired
// behind the same contracts.AuditSink interface so the core's persistence
// stays limited to the audit log and never grows an ORM.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// FileSink appends one JSON object per line to a local file, fsync'd after
// every Append so each entry is on disk before Append returns.
type FileSink struct {
	mu       sync.Mutex
	f        *os.File
	enc      *json.Encoder
	sequence uint64
}

// NewFileSink opens (creating if needed) the JSONL file at path for
// appending. This is the default sink; it is what ships when no DATABASE_URL
// is configured.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		path = "audit.jsonl"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one entry and fsyncs. Entries are never rewritten.
func (s *FileSink) Append(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	entry.Sequence = s.sequence
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	if err := s.enc.Encode(entry); err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	return s.f.Sync()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}

var _ contracts.AuditSink = (*FileSink)(nil)

// MultiSink fans out Append to every configured sink so a Postgres sink can
// run alongside the default file sink without the caller juggling two
// interfaces; the first error is returned but every sink is still attempted.
type MultiSink struct {
	sinks []contracts.AuditSink
}

// NewMultiSink combines sinks, skipping any nil entries.
func NewMultiSink(sinks ...contracts.AuditSink) *MultiSink {
	out := make([]contracts.AuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &MultiSink{sinks: out}
}

func (m *MultiSink) Append(ctx context.Context, entry models.AuditEntry) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ contracts.AuditSink = (*MultiSink)(nil)
