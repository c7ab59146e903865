// Package txlog implements the append-only transaction log: one JSON record
// per line, written whole under a single lock and flushed before Append
// returns.
package txlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

const maxLineBytes = 1 << 20

var (
	ErrClosed   = errors.New("transaction log is closed")
	ErrReadOnly = errors.New("transaction log is opened read-only")
)

type FileLog struct {
	path string

	mu     sync.Mutex
	file   *os.File
	lastTS time.Time
	now    func() time.Time
}

// Open opens (or creates) the log at path for appending. A torn final record
// left by a crash is terminated so the next append starts on a fresh line.
// Processes that only inspect the log use OpenReader instead.
func Open(path string) (*FileLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}

	l := &FileLog{path: path, file: file, now: time.Now}
	if err := l.sealTornTail(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return l, nil
}

func (l *FileLog) Path() string {
	return l.path
}

// Append writes entry as one line and syncs it to disk. Concurrent callers are
// serialized, so the file order is the order in which Append calls completed.
// A tail left unterminated by an earlier failed write is sealed first.
func (l *FileLog) Append(entry entity.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ErrClosed
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = l.now().UTC()
	}
	if ts.Before(l.lastTS) {
		ts = l.lastTS
	}
	entry.Timestamp = ts

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	if len(line)+1 > maxLineBytes {
		return fmt.Errorf("log entry of %d bytes exceeds line limit", len(line))
	}
	line = append(line, '\n')

	if err := l.sealTornTail(); err != nil {
		return err
	}
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log entry: %w", err)
	}

	l.lastTS = ts
	return nil
}

// ReadAll returns every well-formed entry in file order. Torn or corrupt lines
// are skipped.
func (l *FileLog) ReadAll() ([]entity.LogEntry, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open transaction log for reading: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Reader gives read-only access to a log another process may be appending
// to. It never writes, so it cannot interleave bytes with a live writer.
type Reader struct {
	path string
}

func OpenReader(path string) *Reader {
	return &Reader{path: path}
}

func (r *Reader) Path() string {
	return r.path
}

// ReadAll returns every well-formed entry. A log that does not exist yet reads
// as empty.
func (r *Reader) ReadAll() ([]entity.LogEntry, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []entity.LogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transaction log for reading: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Append always fails with ErrReadOnly.
func (r *Reader) Append(entity.LogEntry) error {
	return ErrReadOnly
}

func (r *Reader) Close() error {
	return nil
}

// Decode reads line-delimited entries from r, skipping malformed lines.
func Decode(r io.Reader) ([]entity.LogEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	entries := make([]entity.LogEntry, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var entry entity.LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil || !entry.Valid() {
			logrus.WithField("line", lineNo).Warn("Skipping malformed transaction log line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan transaction log: %w", err)
	}

	return entries, nil
}

func (l *FileLog) sealTornTail() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat transaction log: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := l.file.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("inspect transaction log: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}

	logrus.WithField("path", l.path).Warn("Transaction log ends with a torn record; sealing it")
	if _, err := l.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("seal transaction log: %w", err)
	}
	return l.file.Sync()
}
