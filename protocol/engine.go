// Package protocol implements the BSC-style handshake engine: the state
// machine, retry policy, per-phase timers, outbound queue, and inbound
// dispatcher described by the protocol's COMPONENT DESIGN. The engine owns
// no I/O of its own; it consumes inbound bytes fed to it one at a time and
// emits outbound byte chunks on a channel for a transport to write.
package protocol

import (
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/alexeynaumov/rbisync/frame"
)

// Engine drives a single point-to-point BSC handshake over a byte stream.
// All state is owned by the goroutine started by Run. Input, Write,
// WriteAll and Close are safe to call concurrently because they only hand
// work to that goroutine over a channel; OnRead, OnError and OnStateChange
// set the engine's callback fields directly and are not synchronised with
// Run.
type Engine struct {
	logger log.Logger
	cfg    Config

	fsm fsm

	writeChan   chan [][]byte
	byteChan    chan byte
	timeoutChan chan uint64
	queryChan   chan func()
	closeChan   chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup

	out chan []byte

	queue        [][]byte
	retryCounter int
	rxBuf        []byte

	active   activeHandler
	timerGen uint64

	onRead        func([]byte)
	onError       func(*Error)
	onStateChange func(from, to string)
}

// NewEngine constructs an Engine in StateIdle. Callers must invoke Run in
// its own goroutine before feeding it bytes or writes.
func NewEngine(logger log.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	e := &Engine{
		logger:      logger,
		cfg:         sanitiseConfig(cfg),
		writeChan:   make(chan [][]byte, 16),
		byteChan:    make(chan byte, 256),
		timeoutChan: make(chan uint64, 8),
		queryChan:   make(chan func()),
		closeChan:   make(chan struct{}),
		out:         make(chan []byte, 256),
	}
	e.fsm = fsm{current: StateIdle, table: e.buildTable()}
	return e
}

func (e *Engine) buildTable() []eventDesc {
	return []eventDesc{
		{from: StateIdle, events: []string{"write"}, cb: e.actSendEnq, to: StateAboutToTx},
		{from: StateIdle, events: []string{"rx_enq"}, cb: e.actOnRxEnq, to: StateRxStarted},

		{from: StateAboutToTx, events: []string{"rx_ack"}, cb: e.actOnAckForEnq, to: StateTxStarted},
		{from: StateAboutToTx, events: []string{"rx_enq"}, cb: e.actCollision, to: StateIdle},
		{from: StateAboutToTx, events: []string{"rx_nak"}, cb: e.actAbortToIdle, to: StateIdle},
		{from: StateAboutToTx, events: []string{"timeout"}, cb: e.actEnqTimeout, to: StateAboutToTx},

		{from: StateTxStarted, events: []string{"rx_ack"}, cb: e.actOnAckForMessage, to: StateIdle},
		{from: StateTxStarted, events: []string{"rx_nak"}, cb: e.actAbortToIdle, to: StateIdle},
		{from: StateTxStarted, events: []string{"timeout"}, cb: e.actMsgAckTimeout, to: StateIdle},

		{from: StateRxStarted, events: []string{"frame_complete"}, cb: e.actOnFrameComplete, to: StateRxFinished},
		{from: StateRxStarted, events: []string{"checksum_error"}, cb: e.actChecksumError, to: StateIdle},
		{from: StateRxStarted, events: []string{"timeout"}, cb: e.actRxTimeout, to: StateIdle},

		{from: StateRxFinished, events: []string{"rx_eot"}, cb: e.actRxEotReceived, to: StateIdle},
		{from: StateRxFinished, events: []string{"timeout"}, cb: e.actRxFinishedTimeout, to: StateIdle},
	}
}

// OnRead registers a callback invoked once per successfully received
// frame. Must be called before Run starts delivering bytes. Each call
// chains onto any callback already registered — e.g. a façade's own
// dispatch and a metrics.Collector's counters can both observe reads —
// rather than replacing it.
func (e *Engine) OnRead(cb func(payload []byte)) {
	prev := e.onRead
	if prev == nil {
		e.onRead = cb
		return
	}
	e.onRead = func(payload []byte) {
		prev(payload)
		cb(payload)
	}
}

// OnError registers a callback invoked per reported failure, chaining
// onto any callback already registered (see OnRead).
func (e *Engine) OnError(cb func(*Error)) {
	prev := e.onError
	if prev == nil {
		e.onError = cb
		return
	}
	e.onError = func(err *Error) {
		prev(err)
		cb(err)
	}
}

// OnStateChange registers an observer notified on every engine state
// transition, chaining onto any observer already registered (see
// OnRead). Used by optional telemetry/metrics adapters; the engine
// itself never depends on it being set.
func (e *Engine) OnStateChange(cb func(from, to string)) {
	prev := e.onStateChange
	if prev == nil {
		e.onStateChange = cb
		return
	}
	e.onStateChange = func(from, to string) {
		prev(from, to)
		cb(from, to)
	}
}

// Output returns the channel of outbound byte chunks a transport writer
// should drain and write to the wire, in order.
func (e *Engine) Output() <-chan []byte { return e.out }

// Input feeds one inbound byte, in port order, into the engine.
func (e *Engine) Input(b byte) {
	select {
	case e.byteChan <- b:
	case <-e.closeChan:
	}
}

// Write enqueues message for transmission. A single string argument is
// split on whitespace into one payload per field, preserving the source
// CLI's behaviour; use WriteAll to send whitespace-preserving payloads.
func (e *Engine) Write(message string) {
	fields := strings.Fields(message)
	payloads := make([][]byte, len(fields))
	for i, f := range fields {
		payloads[i] = []byte(f)
	}
	e.WriteAll(payloads)
}

// WriteAll enqueues each payload verbatim, in order, without splitting.
func (e *Engine) WriteAll(payloads [][]byte) {
	if len(payloads) == 0 {
		return
	}
	select {
	case e.writeChan <- payloads:
	case <-e.closeChan:
	}
}

// Run is the engine's single-threaded cooperative event loop. It must run
// in its own goroutine; every state transition happens here and nowhere
// else.
func (e *Engine) Run() {
	e.wg.Add(1)
	defer e.wg.Done()
	for {
		select {
		case <-e.closeChan:
			return
		case payloads := <-e.writeChan:
			e.enqueue(payloads)
		case b := <-e.byteChan:
			e.handleByte(b)
		case gen := <-e.timeoutChan:
			e.handleTimeout(gen)
		case fn := <-e.queryChan:
			fn()
		}
	}
}

// activeHandlerKind reports which response handler is currently attached,
// for tests and introspection. It runs the read on the engine's own
// goroutine via queryChan rather than touching e.active from the caller's
// goroutine, so it is race-free regardless of who calls it.
func (e *Engine) activeHandlerKind() handlerKind {
	result := make(chan handlerKind, 1)
	select {
	case e.queryChan <- func() { result <- e.active.kind }:
	case <-e.closeChan:
		return handlerNone
	}
	select {
	case kind := <-result:
		return kind
	case <-e.closeChan:
		return handlerNone
	}
}

// Close cancels all armed timers, drops the outbound queue, and stops Run.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closeChan)
	})
	e.wg.Wait()
	e.detachHandler()
	e.queue = nil
}

func (e *Engine) enqueue(payloads [][]byte) {
	e.queue = append(e.queue, payloads...)
	e.kick()
}

// kick begins the next handshake if the engine is otherwise idle and work
// is pending. It is the single place "if queue non-empty, start next ENQ"
// is implemented.
func (e *Engine) kick() {
	if e.fsm.current != StateIdle || e.active.kind != handlerNone {
		return
	}
	if len(e.queue) == 0 {
		return
	}
	e.dispatch("write")
}

func (e *Engine) dropHead() {
	if len(e.queue) > 0 {
		e.queue = e.queue[1:]
	}
}

// dispatch runs event through the fsm table and logs/notifies on any
// resulting state transition.
func (e *Engine) dispatch(event string, args ...interface{}) {
	prev := e.fsm.current
	if err := e.fsm.handleEvent(event, args...); err != nil {
		level.Debug(e.logger).Log("message", "unhandled event", "event", event, "state", prev)
		return
	}
	if e.fsm.current != prev {
		level.Debug(e.logger).Log("message", "state transition", "event", event, "from", prev, "to", e.fsm.current)
		if e.onStateChange != nil {
			e.onStateChange(prev, e.fsm.current)
		}
	}
}

func (e *Engine) reportError(code ErrorCode, err error) {
	level.Debug(e.logger).Log("message", "protocol error", "code", code.String(), "state", e.fsm.current)
	if e.onError != nil {
		e.onError(newError(code, err))
	}
}

func (e *Engine) sendByte(b byte) {
	select {
	case e.out <- []byte{b}:
	case <-e.closeChan:
	}
}

func (e *Engine) sendFrame(payload []byte) {
	select {
	case e.out <- frame.Build(payload):
	case <-e.closeChan:
	}
}

// handleByte classifies one inbound byte against the current phase and
// feeds the resulting named event to the fsm. This is the inbound
// dispatcher: ENQ recognition while idle (every other byte, NAK included,
// is ignored there), plus per-handler byte routing while a phase is active.
func (e *Engine) handleByte(b byte) {
	switch e.fsm.current {
	case StateIdle:
		if b == frame.ENQ {
			e.dispatch("rx_enq")
		}
	case StateAboutToTx:
		switch b {
		case frame.ACK:
			e.dispatch("rx_ack")
		case frame.ENQ:
			e.dispatch("rx_enq")
		case frame.NAK:
			e.dispatch("rx_nak")
		}
	case StateTxStarted:
		switch b {
		case frame.ACK:
			e.dispatch("rx_ack")
		case frame.NAK:
			e.dispatch("rx_nak")
		}
	case StateRxStarted:
		e.accumulateRx(b)
	case StateRxFinished:
		if b == frame.EOT {
			e.dispatch("rx_eot")
		}
	}
}

func (e *Engine) accumulateRx(b byte) {
	e.rxBuf = append(e.rxBuf, b)
	payload, want, got, _, err := frame.Parse(e.rxBuf)
	switch err {
	case nil:
		e.rxBuf = nil
		if want == got || e.cfg.IgnoreChecksumErrors {
			e.dispatch("frame_complete", payload)
		} else {
			e.dispatch("checksum_error")
		}
	case frame.ErrIncomplete:
		// keep accumulating
	default:
		// malformed lead byte: resync by discarding
		e.rxBuf = nil
	}
}

func (e *Engine) handleTimeout(gen uint64) {
	if !e.timerValid(gen) {
		return
	}
	e.dispatch("timeout")
}

// --- fsm table callbacks, one per transition in §4.2 ---

func (e *Engine) actSendEnq(args []interface{}) {
	e.retryCounter = 0
	e.sendByte(frame.ENQ)
	e.attachHandler(handlerEnqForAck, e.cfg.EnqAckTimeout)
}

func (e *Engine) actOnRxEnq(args []interface{}) {
	e.sendByte(frame.ACK)
	e.rxBuf = nil
	e.attachHandler(handlerAckForMessage, e.cfg.AckMsgTimeout)
}

func (e *Engine) actOnAckForEnq(args []interface{}) {
	var payload []byte
	if len(e.queue) > 0 {
		payload = e.queue[0]
	}
	e.sendFrame(payload)
	e.attachHandler(handlerMessageForAck, e.cfg.MsgAckTimeout)
}

func (e *Engine) actCollision(args []interface{}) {
	e.detachHandler()
	e.reportError(CollisionDetected, nil)
	// Head stays queued; the caller decides whether/when to retry.
}

func (e *Engine) actAbortToIdle(args []interface{}) {
	e.detachHandler()
	e.reportError(PeerNotAcknowledge, nil)
	e.dropHead()
	e.kick()
}

func (e *Engine) actEnqTimeout(args []interface{}) {
	if e.retryCounter < e.cfg.MaxRetries {
		e.retryCounter++
		e.reportError(NoAckBeforeMessage, nil)
		e.sendByte(frame.ENQ)
		e.attachHandler(handlerEnqForAck, e.cfg.EnqAckRetryTimeout)
		return
	}
	e.retryCounter = 0
	e.reportError(RemotePeerNotResponding, nil)
	e.dropHead()
	e.detachHandler()
	e.fsm.current = StateIdle
	e.kick()
}

func (e *Engine) actOnAckForMessage(args []interface{}) {
	e.detachHandler()
	e.sendByte(frame.EOT)
	e.dropHead()
	e.retryCounter = 0
	e.kick()
}

func (e *Engine) actMsgAckTimeout(args []interface{}) {
	e.detachHandler()
	e.reportError(NoAckAfterMessage, nil)
	e.dropHead()
	e.kick()
}

func (e *Engine) actOnFrameComplete(args []interface{}) {
	payload, _ := args[0].([]byte)
	e.detachHandler()
	e.sendByte(frame.ACK)
	if e.onRead != nil {
		e.onRead(payload)
	}
	e.attachHandler(handlerAckForEot, e.cfg.AckEotTimeout)
}

func (e *Engine) actChecksumError(args []interface{}) {
	e.detachHandler()
	e.reportError(ChecksumError, nil)
	e.sendByte(frame.NAK)
	e.rxBuf = nil
	e.kick()
}

func (e *Engine) actRxTimeout(args []interface{}) {
	e.detachHandler()
	e.reportError(NoMessageTooLong, nil)
	e.rxBuf = nil
	e.kick()
}

func (e *Engine) actRxEotReceived(args []interface{}) {
	e.detachHandler()
	e.kick()
}

func (e *Engine) actRxFinishedTimeout(args []interface{}) {
	e.detachHandler()
	e.reportError(NoEotTooLong, nil)
	e.kick()
}
