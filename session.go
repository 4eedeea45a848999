package measx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/measx/internal/mmap"
)

const (
	sessionFieldLen   = 23
	sessionStartField = 2
	sessionEndField   = sessionStartField + sessionFieldLen
)

// Timestamp layouts written by the recorder, with and without the ISO 'T'.
const (
	TimestampLayout    = "2006-01-02 15:04:05.000"
	TimestampLayoutISO = "2006-01-02T15:04:05.000"
)

// SessionFile is a read-only view of a session header holding the start and
// end time of a recording as fixed-width text.
type SessionFile struct {
	m    *mmap.Mapping
	path string
	opts options
}

// OpenSession maps the session file at path.
func OpenSession(path string, optFns ...Option) (*SessionFile, error) {
	o := applyOptions(optFns)
	m, local, err := acquire(context.Background(), "session", Local(path), &o)
	if err != nil {
		return nil, err
	}
	return newSessionFile(m, local, o), nil
}

func newSessionFile(m *mmap.Mapping, path string, o options) *SessionFile {
	return &SessionFile{m: m, path: path, opts: o}
}

// Path returns the local path the file was mapped from.
func (s *SessionFile) Path() string { return s.path }

// Size returns the mapped length in bytes, or 0 once closed.
func (s *SessionFile) Size() int { return s.m.Size() }

// StartTime returns the raw 23 bytes at offset 2. The file must hold at
// least 25 bytes.
func (s *SessionFile) StartTime() (string, error) {
	return s.field("start time", sessionStartField)
}

// EndTime returns the raw 23 bytes at offset 25. The file must hold at
// least 48 bytes.
func (s *SessionFile) EndTime() (string, error) {
	return s.field("end time", sessionEndField)
}

// StartTimestamp parses StartTime.
func (s *SessionFile) StartTimestamp() (time.Time, error) {
	raw, err := s.StartTime()
	if err != nil {
		return time.Time{}, err
	}
	return ParseTimestamp(raw)
}

// EndTimestamp parses EndTime.
func (s *SessionFile) EndTimestamp() (time.Time, error) {
	raw, err := s.EndTime()
	if err != nil {
		return time.Time{}, err
	}
	return ParseTimestamp(raw)
}

// Close unmaps the file. It is safe to call more than once.
func (s *SessionFile) Close() error {
	if s.m.Closed() {
		return nil
	}
	err := s.m.Close()
	s.opts.logger.LogClose(s.path, err)
	return err
}

func (s *SessionFile) field(name string, off int) (string, error) {
	if err := requireHeader(s.m, name, off+sessionFieldLen); err != nil {
		return "", err
	}
	raw, err := s.m.Span(off, sessionFieldLen)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseTimestamp parses a session timestamp in UTC. Trailing NUL padding and
// spaces are ignored.
func ParseTimestamp(raw string) (time.Time, error) {
	v := strings.TrimRight(raw, "\x00 ")
	for _, layout := range []string{TimestampLayout, TimestampLayoutISO} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized timestamp %q", ErrFormat, v)
}
