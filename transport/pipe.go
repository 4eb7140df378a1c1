package transport

import (
	"io"
	"time"
)

// Pipe is an in-memory Port backed by io.Pipe, used by tests and by
// anything exercising a Link without real hardware. Reads ignore
// SetReadTimeout's deadline; callers that need deadline semantics use
// SerialPort against real hardware instead.
type Pipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewPipePair returns two Ports wired to each other: bytes written to one
// are read from the other, in both directions.
func NewPipePair() (a, b *Pipe) {
	ar, aw := io.Pipe()
	br, bw := io.Pipe()
	a = &Pipe{r: ar, w: bw}
	b = &Pipe{r: br, w: aw}
	return a, b
}

func (p *Pipe) Read(buf []byte) (int, error)  { return p.r.Read(buf) }
func (p *Pipe) Write(buf []byte) (int, error) { return p.w.Write(buf) }

func (p *Pipe) Close() error {
	_ = p.r.Close()
	return p.w.Close()
}

// SetReadTimeout is a no-op: io.Pipe has no deadline support.
func (p *Pipe) SetReadTimeout(timeout time.Duration) {}
