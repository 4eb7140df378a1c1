// Package transport provides the Byte Transport collaborator the protocol
// engine consumes: a bidirectional octet stream plus the reader/writer
// goroutines that bridge it onto an engine's Input/Output channels.
package transport

import (
	"io"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/alexeynaumov/rbisync/protocol"
)

// Port is the raw byte stream a Link drives. SerialPort and Pipe both
// implement it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration)
}

// Pump wires a Port to an Engine: a dedicated reader goroutine blocks on
// Port.Read and hands bytes to the engine in port order, and a dedicated
// writer goroutine drains the engine's Output channel and blocks on
// Port.Write. Neither goroutine ever touches engine state directly,
// satisfying the engine's single-threaded ownership of its own state.
type Pump struct {
	logger log.Logger
	port   Port
	engine *protocol.Engine

	wg        sync.WaitGroup
	closeOnce sync.Once
	stopChan  chan struct{}
}

// NewPump constructs a Pump. Call Start to begin pumping bytes in both
// directions.
func NewPump(logger log.Logger, port Port, engine *protocol.Engine) *Pump {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Pump{
		logger:   logger,
		port:     port,
		engine:   engine,
		stopChan: make(chan struct{}),
	}
}

// Start launches the reader and writer goroutines.
func (p *Pump) Start() {
	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
}

// Close stops both goroutines and closes the underlying port.
func (p *Pump) Close() error {
	p.closeOnce.Do(func() { close(p.stopChan) })
	err := p.port.Close()
	p.wg.Wait()
	return err
}

func (p *Pump) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-p.stopChan:
			return
		default:
		}
		n, err := p.port.Read(buf)
		if err != nil {
			if err != io.EOF {
				level.Error(p.logger).Log("message", "port read failed", "error", err)
			}
			return
		}
		for _, b := range buf[:n] {
			p.engine.Input(b)
		}
	}
}

func (p *Pump) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.engine.Output():
			if !ok {
				return
			}
			if _, err := p.port.Write(chunk); err != nil {
				level.Error(p.logger).Log("message", "port write failed", "error", err)
				return
			}
		}
	}
}
