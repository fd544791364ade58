package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Direction of a raw report relative to the host.
type Direction bool

const (
	HostToDevice Direction = false
	DeviceToHost Direction = true
)

func (d Direction) String() string {
	if d == DeviceToHost {
		return "D->H"
	}
	return "H->D"
}

// RawLogger records every HID report exchanged with a controller.
type RawLogger interface {
	Log(dir Direction, report []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil w discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one line per report: timestamp, direction, report id, length
// and a space separated hex dump.
func (r *rawLogger) Log(dir Direction, report []byte) {
	if len(report) == 0 || r.w == nil {
		return
	}

	var line bytes.Buffer
	fmt.Fprintf(&line, "%s %s report 0x%02X: %d bytes, hex:",
		time.Now().Format("2006/01/02 15:04:05.000"),
		dir,
		report[0],
		len(report))
	for _, b := range report {
		fmt.Fprintf(&line, " %02x", b)
	}
	line.WriteByte('\n')

	r.mu.Lock()
	_, _ = r.w.Write(line.Bytes())
	r.mu.Unlock()
}
