package logger

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Entry is one captured log line
type Entry struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Level     string    `json:"level" msgpack:"level"`
	Component string    `json:"component,omitempty" msgpack:"component,omitempty"`
	Message   string    `json:"message" msgpack:"message"`
	Block     string    `json:"block,omitempty" msgpack:"block,omitempty"`
}

// Buffer is a circular buffer of recent log entries
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	size     int
	writePos int
	count    int
}

const defaultBufferSize = 1000

var (
	globalBuffer *Buffer
	bufferOnce   sync.Once
)

// GetBuffer returns the process-wide buffer
func GetBuffer() *Buffer {
	bufferOnce.Do(func() {
		globalBuffer = NewBuffer(defaultBufferSize)
	})
	return globalBuffer
}

// NewBuffer creates a buffer holding at most size entries
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Add appends an entry, overwriting the oldest when full
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.writePos] = entry
	b.writePos = (b.writePos + 1) % b.size
	if b.count < b.size {
		b.count++
	}
}

// Recent returns up to limit entries at or above level, newest first. A
// zero since disables the time filter.
func (b *Buffer) Recent(limit int, level string, since time.Time) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if limit <= 0 || limit > b.count {
		limit = b.count
	}
	minRank := levelRank(level)

	var result []Entry
	for i := 0; i < b.count && len(result) < limit; i++ {
		idx := (b.writePos - 1 - i + b.size) % b.size
		entry := b.entries[idx]

		if !since.IsZero() && entry.Timestamp.Before(since) {
			continue
		}
		if level != "" && levelRank(entry.Level) < minRank {
			continue
		}
		result = append(result, entry)
	}
	return result
}

// Count returns the number of entries held
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Reset empties the buffer
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writePos = 0
	b.count = 0
}

func levelRank(level string) int {
	switch strings.ToLower(level) {
	case "trace":
		return -1
	case "debug":
		return 0
	case "info":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	case "fatal", "panic":
		return 4
	default:
		return 1
	}
}

// BufferWriter forwards zerolog JSON lines to another writer and records
// them in a Buffer
type BufferWriter struct {
	buffer   *Buffer
	original io.Writer
}

// NewBufferWriter creates a writer capturing into the global buffer
func NewBufferWriter(original io.Writer) *BufferWriter {
	return &BufferWriter{
		buffer:   GetBuffer(),
		original: original,
	}
}

// Write implements io.Writer
func (w *BufferWriter) Write(p []byte) (n int, err error) {
	if w.original != nil {
		n, err = w.original.Write(p)
	} else {
		n = len(p)
	}

	if entry, ok := parseLine(p); ok {
		w.buffer.Add(entry)
	}
	return n, err
}

func parseLine(line []byte) (Entry, bool) {
	if !gjson.ValidBytes(line) {
		return Entry{}, false
	}
	doc := gjson.ParseBytes(line)

	entry := Entry{
		Timestamp: time.Now(),
		Level:     doc.Get(zerolog.LevelFieldName).String(),
		Component: doc.Get("component").String(),
		Message:   doc.Get(zerolog.MessageFieldName).String(),
		Block:     doc.Get("block").String(),
	}
	if ts := doc.Get(zerolog.TimestampFieldName); ts.Exists() {
		if t, err := time.Parse(time.RFC3339, ts.String()); err == nil {
			entry.Timestamp = t
		}
	}
	return entry, entry.Level != "" || entry.Message != ""
}
