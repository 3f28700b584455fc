// Package rawlog keeps a lossless, append-only JSONL record of every frame
// an agent produced, before any projection is applied.
//
// Each line is an [Entry]. Paths ending in ".zst" are written as a zstd
// stream; [ReadFile] reads both forms and also accepts bare JSON-RPC
// captures with one frame per line.
package rawlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry is one logged frame. Frame holds valid JSON verbatim; lines that
// were not valid JSON are kept in Text instead.
type Entry struct {
	Time    time.Time       `json:"ts"`
	Session string          `json:"session,omitempty"`
	Frame   json.RawMessage `json:"frame,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Bytes returns the frame as it was received.
func (e Entry) Bytes() []byte {
	if len(e.Frame) > 0 {
		return e.Frame
	}
	return []byte(e.Text)
}

// Summary counts what a Writer has recorded.
type Summary struct {
	Sessions map[string]int64 `json:"sessions"`
	Entries  int64            `json:"entries"`
	Bytes    int64            `json:"bytes"`
	Invalid  int64            `json:"invalid"`
}

// Writer appends entries to a file. It is safe for concurrent use.
type Writer struct {
	file     *os.File
	zw       *zstd.Encoder
	buf      *bufio.Writer
	encoder  *json.Encoder
	now      func() time.Time
	sessions map[string]int64
	entries  int64
	bytes    int64
	invalid  int64
	mu       sync.Mutex
	closed   bool
}

// Create creates (or truncates) the log at path.
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating raw log %q: %w", path, err)
	}
	w := &Writer{
		file:     file,
		now:      time.Now,
		sessions: make(map[string]int64),
	}
	var out io.Writer = file
	if strings.HasSuffix(path, ".zst") {
		w.zw, err = zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		out = w.zw
	}
	w.buf = bufio.NewWriter(out)
	w.encoder = json.NewEncoder(w.buf)
	w.encoder.SetEscapeHTML(false)
	return w, nil
}

// Append records raw for sessionKey. Plain files are flushed per entry so
// the log survives a crash; zstd streams are flushed on Close.
func (w *Writer) Append(sessionKey string, raw json.RawMessage) error {
	entry := Entry{Session: sessionKey}
	if json.Valid(raw) {
		entry.Frame = raw
	} else {
		entry.Text = string(raw)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	entry.Time = w.now().UTC()
	if err := w.encoder.Encode(entry); err != nil {
		return fmt.Errorf("encoding raw log entry: %w", err)
	}
	if w.zw == nil {
		if err := w.buf.Flush(); err != nil {
			return fmt.Errorf("flushing raw log: %w", err)
		}
	}

	w.entries++
	w.bytes += int64(len(raw))
	w.sessions[sessionKey]++
	if entry.Text != "" {
		w.invalid++
	}
	return nil
}

// Summary returns the counters recorded so far.
func (w *Writer) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	sessions := make(map[string]int64, len(w.sessions))
	for k, v := range w.sessions {
		sessions[k] = v
	}
	return Summary{Entries: w.entries, Bytes: w.bytes, Invalid: w.invalid, Sessions: sessions}
}

// Close flushes and closes the file. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	if w.zw != nil {
		if cerr := w.zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadFile calls fn for every entry in the file at path, in order. Lines
// that are bare JSON-RPC frames become entries with no session.
func ReadFile(path string, fn func(Entry) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening raw log %q: %w", path, err)
	}
	defer file.Close()

	var in io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer zr.Close()
		in = zr
	}
	return Read(in, fn)
}

// Read is ReadFile over an already open stream.
func Read(r io.Reader, fn func(Entry) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		entry := parseLine(line)
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading raw log: %w", err)
	}
	return nil
}

func parseLine(line []byte) Entry {
	var entry Entry
	if err := json.Unmarshal(line, &entry); err == nil && (len(entry.Frame) > 0 || entry.Text != "") {
		return entry
	}
	return Entry{Frame: append(json.RawMessage(nil), line...)}
}
