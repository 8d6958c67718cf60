// Package logger builds the process logger: coloured key=value lines on a
// terminal, JSON lines everywhere else.
package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jwalton/gchalk"
	"github.com/jwalton/go-supportscolor"
)

var _ log.Logger = (*consoleLogger)(nil)

type consoleLogger struct {
	w       io.Writer
	debug   bool
	color   bool
	discard bool
	mu      sync.Mutex
	pool    *sync.Pool
}

// New returns the service logger with timestamp and caller attached.
func New(w io.Writer, service string, debug bool) log.Logger {
	return log.With(NewConsoleLogger(w, debug),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", service,
	)
}

// NewConsoleLogger writes coloured output when w is a terminal that supports
// colour and JSON otherwise. Debug lines are dropped unless debug is set.
func NewConsoleLogger(w io.Writer, debug bool) log.Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = supportscolor.SupportsColor(f.Fd()).Level != gchalk.LevelNone
	}
	return &consoleLogger{
		w:       w,
		debug:   debug,
		color:   color,
		discard: w == io.Discard,
		pool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Discard is for tests.
func Discard() log.Logger {
	return log.NewStdLogger(io.Discard)
}

func (l *consoleLogger) Log(level log.Level, keyvals ...interface{}) error {
	if level == log.LevelDebug && !l.debug {
		return nil
	}
	if l.discard || len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	if !l.color {
		return l.jsonOutput(level, keyvals...)
	}

	buf := l.pool.Get().(*bytes.Buffer)
	defer l.pool.Put(buf)
	defer buf.Reset()

	paint := gchalk.Gray
	switch level {
	case log.LevelDebug:
		paint = gchalk.Green
	case log.LevelInfo:
		paint = gchalk.Blue
	case log.LevelWarn:
		paint = gchalk.Yellow
	case log.LevelError, log.LevelFatal:
		paint = gchalk.BgBrightRed
	}
	buf.WriteString(paint(level.String()))

	for i := 0; i < len(keyvals); i += 2 {
		v := fmt.Sprintf("%v", keyvals[i+1])
		if v == "" {
			continue
		}
		_, _ = fmt.Fprintf(buf, " %s%s%s", gchalk.Gray(fmt.Sprint(keyvals[i])), gchalk.Gray("="), v)
	}
	buf.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(buf.Bytes())
	return err
}

func (l *consoleLogger) jsonOutput(level log.Level, keyvals ...interface{}) error {
	entry := map[string]interface{}{"level": level.String()}
	for i := 0; i < len(keyvals); i += 2 {
		v := keyvals[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[fmt.Sprint(keyvals[i])] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(data)
	return err
}
