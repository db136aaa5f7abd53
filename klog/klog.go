// Package klog formats and emits kernel log lines to the serial byte-sink
// the HAL exposes, per spec.md §6: "<timestamp> <level> <facility>:
// <message>\n". A bounded circbuf.Circbuf_t keeps the last bytes in memory
// so a synthetic-fs entry (sysfs's /sys/kmsg) can serve them without
// re-reading the UART.
package klog

import (
	"fmt"
	"sync"
	"time"

	"kernix/caller"
	"kernix/circbuf"
)

// Level enumerates kernel log severities.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Fatal:
		return "fatal"
	default:
		return "?"
	}
}

// SerialWriter is the byte-granular UART sink the HAL provides (spec.md §1
// external collaborators: "byte-granular serial output").
type SerialWriter interface {
	WriteByte(b byte) error
}

// Logger serialises kernel log output and retains a tail buffer.
type Logger struct {
	mu     sync.Mutex
	serial SerialWriter
	tail   *circbuf.Circbuf_t
	now    func() time.Time
	dedup  caller.DistinctCaller
}

// New constructs a Logger writing to serial with a tail buffer of tailCap
// bytes.
func New(serial SerialWriter, tailCap int) *Logger {
	l := &Logger{serial: serial, tail: circbuf.Init(tailCap), now: time.Now}
	l.dedup.Enabled = true
	return l
}

func (l *Logger) writeLine(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tail.Write([]uint8(s))
	if l.serial != nil {
		for i := 0; i < len(s); i++ {
			l.serial.WriteByte(s[i])
		}
	}
}

// Logf formats and emits one log line at the given level and facility.
func (l *Logger) Logf(lvl Level, facility, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%d %s %s: %s\n", l.now().UnixNano()/int64(time.Millisecond), lvl, facility, msg)
	l.writeLine(line)
}

// Warnf logs a recoverable-error warning (spec.md §7.2), de-duplicating
// identical call sites so a hot failing path cannot flood the console.
func (l *Logger) Warnf(facility, format string, args ...interface{}) {
	if fresh, _ := l.dedup.Distinct(); !fresh {
		return
	}
	l.Logf(Warn, facility, format, args...)
}

// Tail returns up to len(dst) of the most recently logged bytes, for
// /sys/kmsg.
func (l *Logger) Tail(dst []uint8) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tail.Read(dst)
}

// Default is a process-wide logger with no serial sink; cmd/kernel's Boot
// builds its own Logger and does not replace it. A nil serial is valid and
// simply drops bytes, so Default only fills its in-memory tail.
var Default = New(nil, 64*1024)
