// Package nlog is the engine's buffered, severity-leveled logger: one
// growable line buffer and mutex per severity, and optional
// size-based rotation into a log directory. No third-party logging
// library is used here because there is none in the teacher's own
// ambient stack either — nlog is itself a hand-rolled logger there.
package nlog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

// MaxSize is the rotation threshold for the combined log file, in bytes.
var MaxSize int64 = 4 * 1024 * 1024

type nlog struct {
	mu      sync.Mutex
	buf     strings.Builder
	file    *os.File
	written int64
}

var (
	logs   [3]*nlog
	logDir string
	title  string

	toStderr     atomic.Bool
	alsoToStderr atomic.Bool
)

func init() {
	for i := range logs {
		logs[i] = &nlog{}
	}
}

// SetLogDir enables file logging under dir; until called, all output
// goes to stderr. Must be called before the first log line if file
// output is wanted, mirroring the teacher's flag.Parsed() ordering
// constraint.
func SetLogDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	logDir = dir
	return nil
}

// SetTitle sets a banner line written at the top of a fresh/rotated file.
func SetTitle(s string) { title = s }

// SetToStderr forces (or releases) stderr-only logging, e.g. for tests.
func SetToStderr(v bool) { toStderr.Store(v) }

func InfoDepth(depth int, args ...any)    { write(sevInfo, depth+1, "", args...) }
func Infoln(args ...any)                  { write(sevInfo, 1, "", args...) }
func Infof(format string, args ...any)    { write(sevInfo, 1, format, args...) }
func Warningln(args ...any)               { write(sevWarn, 1, "", args...) }
func Warningf(format string, args ...any) { write(sevWarn, 1, format, args...) }
func ErrorDepth(depth int, args ...any)   { write(sevErr, depth+1, "", args...) }
func Errorln(args ...any)                 { write(sevErr, 1, "", args...) }
func Errorf(format string, args ...any)   { write(sevErr, 1, format, args...) }

func write(sev severity, depth int, format string, args ...any) {
	line := formatLine(sev, depth+1, format, args...)

	if toStderr.Load() || logDir == "" {
		os.Stderr.WriteString(line)
		if sev == sevWarn && !alsoToStderr.Load() {
			// warnings still go to the warning log below when file logging is on
		}
		if logDir == "" {
			return
		}
	} else if alsoToStderr.Load() || sev >= sevErr {
		os.Stderr.WriteString(line)
	}

	nl := logs[sevInfo]
	if sev >= sevWarn {
		nl = logs[sev]
	}
	nl.append(line)
}

func (n *nlog) append(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.file == nil {
		if err := n.open(); err != nil {
			os.Stderr.WriteString(line)
			return
		}
	}

	n.buf.WriteString(line)
	if n.buf.Len() >= 32*1024 {
		n.flushLocked()
	}
}

func (n *nlog) open() error {
	name := fmt.Sprintf("tlcengine.%s.%d.log", time.Now().Format("20060102-150405"), os.Getpid())
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	n.file = f
	n.written = 0
	if title != "" {
		f.WriteString(title + "\n")
	}
	return nil
}

// under n.mu
func (n *nlog) flushLocked() {
	if n.file == nil || n.buf.Len() == 0 {
		return
	}
	s := n.buf.String()
	nw, _ := n.file.WriteString(s)
	n.written += int64(nw)
	n.buf.Reset()

	if n.written >= MaxSize {
		n.file.Close()
		n.file = nil
	}
}

// Flush forces all buffered lines to disk. When exit is true, files are
// also synced and closed — called at process shutdown.
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, n := range logs {
		n.mu.Lock()
		n.flushLocked()
		if ex && n.file != nil {
			n.file.Sync()
			n.file.Close()
			n.file = nil
		}
		n.mu.Unlock()
	}
}

func formatLine(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')

	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}

	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	return b.String()
}
