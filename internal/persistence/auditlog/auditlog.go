// Package auditlog records block lifecycle transitions as hourly-rotated,
// zstd-compressed JSONL. The files are the durable trail; the sqlite index
// is a queryable view derived from the same entries.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"enchantedblocks.dev/internal/persistence/regionstore"
	"enchantedblocks.dev/internal/sim/host"
)

// Entry is one lifecycle line. Region flushes carry only World/RX/RZ.
type Entry struct {
	TS      string `json:"ts"`
	Event   string `json:"event"`
	World   string `json:"world"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Z       int    `json:"z,omitempty"`
	Variant string `json:"variant,omitempty"`
	RX      int    `json:"rx,omitempty"`
	RZ      int    `json:"rz,omitempty"`
}

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Logger implements the block manager's Recorder against a JSONL writer.
type Logger struct {
	w *JSONLZstdWriter
	// Errf receives write failures; lifecycle recording never blocks or
	// propagates them into the tick path.
	Errf func(format string, args ...any)
}

func NewLogger(dataDir string) *Logger {
	return &Logger{
		w:    NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "lifecycle"),
		Errf: func(string, ...any) {},
	}
}

func (l *Logger) BlockEvent(event string, key host.BlockKey, variant string) {
	l.write(Entry{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Event:   event,
		World:   key.World,
		X:       key.Pos.X,
		Y:       key.Pos.Y,
		Z:       key.Pos.Z,
		Variant: variant,
	})
}

func (l *Logger) RegionFlush(region regionstore.Region) {
	l.write(Entry{
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		Event: "region_flush",
		World: region.World,
		RX:    region.X,
		RZ:    region.Z,
	})
}

func (l *Logger) write(e Entry) {
	if err := l.w.Write(e); err != nil {
		l.Errf("auditlog: %v", err)
	}
}

func (l *Logger) Close() error { return l.w.Close() }
