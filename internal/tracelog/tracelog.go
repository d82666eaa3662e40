// Package tracelog appends pipeline step records to a JSON Lines file.
package tracelog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultFileName is the trace file name used by the CLI.
const DefaultFileName = "research_log.jsonl"

// Entry is one line of the trace.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Step      string `json:"step"`
	Agent     string `json:"agent"`
	Result    any    `json:"result,omitempty"`
}

// Writer appends entries to a file, opening and closing it on every write
// so the trace survives crashes. A nil *Writer discards entries.
type Writer struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New returns a Writer appending to path.
func New(path string) *Writer {
	return &Writer{path: path, now: time.Now}
}

// Path returns the trace file location.
func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Record appends one step. Failures are logged and returned; callers treat
// them as non-fatal.
func (w *Writer) Record(agent, step string, result any) error {
	if w == nil {
		return nil
	}
	e := Entry{
		Timestamp: w.now().UTC().Format(time.RFC3339Nano),
		Step:      step,
		Agent:     agent,
		Result:    result,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "tracelog: marshal entry")
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "tracelog: create %s", dir)
		}
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		zap.L().Warn("tracelog: open failed", zap.String("path", w.path), zap.Error(err))
		return eris.Wrapf(err, "tracelog: open %s", w.path)
	}
	if _, err := f.Write(line); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "tracelog: write %s", w.path)
	}
	return eris.Wrapf(f.Close(), "tracelog: close %s", w.path)
}
