package protocol

import (
	"os"
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/alexeynaumov/rbisync/frame"
)

// testConfig scales the definitive timeout schedule down by one order of
// magnitude so the suite runs in low milliseconds rather than seconds,
// mirroring how the teacher's transport_test.go shrinks AckTimeout for
// fast tests. It deliberately stays in millisecond territory rather than
// microseconds: pushing several inbound bytes through the engine's
// channels within a live timer window needs headroom against scheduler
// jitter under load.
func testConfig() Config {
	return Config{
		EnqAckTimeout:        25 * time.Millisecond,
		EnqAckRetryTimeout:   150 * time.Millisecond,
		MsgAckTimeout:        50 * time.Millisecond,
		AckMsgTimeout:        10 * time.Millisecond,
		AckEotTimeout:        12 * time.Millisecond,
		MaxRetries:           MaxRetry,
		IgnoreChecksumErrors: true,
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	logger := log.NewNopLogger()
	if testing.Verbose() {
		logger = log.NewLogfmtLogger(os.Stderr)
	}
	eng := NewEngine(logger, cfg)
	go eng.Run()
	t.Cleanup(eng.Close)
	return eng
}

func recvOutput(t *testing.T, eng *Engine) []byte {
	t.Helper()
	select {
	case b := <-eng.Output():
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for engine output")
		return nil
	}
}

func expectNoOutput(t *testing.T, eng *Engine, within time.Duration) {
	t.Helper()
	select {
	case b := <-eng.Output():
		t.Fatalf("unexpected output %#v", b)
	case <-time.After(within):
	}
}

// TestHappySendA is scenario 1: a successful outbound handshake for "A".
func TestHappySendA(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	var gotErrors []*Error
	eng.OnError(func(e *Error) { gotErrors = append(gotErrors, e) })

	eng.Write("A")

	if got := recvOutput(t, eng); got[0] != frame.ENQ {
		t.Fatalf("first output = %#v, want ENQ", got)
	}
	eng.Input(frame.ACK)

	want := frame.Build([]byte("A"))
	if got := recvOutput(t, eng); string(got) != string(want) {
		t.Fatalf("frame = %#v, want %#v", got, want)
	}
	eng.Input(frame.ACK)

	if got := recvOutput(t, eng); got[0] != frame.EOT {
		t.Fatalf("final output = %#v, want EOT", got)
	}

	if len(gotErrors) != 0 {
		t.Fatalf("unexpected errors: %v", gotErrors)
	}
}

// TestHappyReceiveHI is scenario 2: a successful inbound handshake
// delivering "HI".
func TestHappyReceiveHI(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	received := make(chan []byte, 1)
	eng.OnRead(func(payload []byte) { received <- payload })

	eng.Input(frame.ENQ)
	if got := recvOutput(t, eng); got[0] != frame.ACK {
		t.Fatalf("response to ENQ = %#v, want ACK", got)
	}

	msg := []byte{frame.STX, 'H', 'I', frame.ETX, 0x02}
	for _, b := range msg {
		eng.Input(b)
	}

	select {
	case payload := <-received:
		if string(payload) != "HI" {
			t.Fatalf("on_read payload = %q, want %q", payload, "HI")
		}
	case <-time.After(time.Second):
		t.Fatal("on_read was not invoked")
	}

	if got := recvOutput(t, eng); got[0] != frame.ACK {
		t.Fatalf("response to message = %#v, want ACK", got)
	}
	eng.Input(frame.EOT)
}

// TestRemotePeerNotResponding is scenario 3: no peer response exhausts
// all retries.
func TestRemotePeerNotResponding(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	errCh := make(chan *Error, 4)
	eng.OnError(func(e *Error) { errCh <- e })

	eng.Write("X")

	for i := 0; i < 3; i++ {
		if got := recvOutput(t, eng); got[0] != frame.ENQ {
			t.Fatalf("ENQ attempt %d = %#v, want ENQ", i, got)
		}
	}

	var codes []ErrorCode
	for i := 0; i < 3; i++ {
		select {
		case e := <-errCh:
			codes = append(codes, e.Code)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for error %d", i)
		}
	}
	if codes[0] != NoAckBeforeMessage || codes[1] != NoAckBeforeMessage || codes[2] != RemotePeerNotResponding {
		t.Fatalf("error sequence = %v, want [NoAckBeforeMessage NoAckBeforeMessage RemotePeerNotResponding]", codes)
	}
}

// TestCollision is scenario 4: an inbound ENQ arrives while awaiting our
// own ENQ's ACK.
func TestCollision(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	errCh := make(chan *Error, 1)
	eng.OnError(func(e *Error) { errCh <- e })

	eng.Write("X")
	if got := recvOutput(t, eng); got[0] != frame.ENQ {
		t.Fatalf("output = %#v, want ENQ", got)
	}
	eng.Input(frame.ENQ)

	select {
	case e := <-errCh:
		if e.Code != CollisionDetected {
			t.Fatalf("error = %v, want CollisionDetected", e.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("collision was not reported")
	}
}

// TestChecksumMismatchStrict is scenario 5: a BCC mismatch under strict
// checksum enforcement.
func TestChecksumMismatchStrict(t *testing.T) {
	cfg := testConfig()
	cfg.IgnoreChecksumErrors = false
	eng := newTestEngine(t, cfg)

	errCh := make(chan *Error, 1)
	eng.OnError(func(e *Error) { errCh <- e })

	eng.Input(frame.ENQ)
	recvOutput(t, eng) // ACK

	msg := []byte{frame.STX, 'H', 'I', frame.ETX, 0x00}
	for _, b := range msg {
		eng.Input(b)
	}

	select {
	case e := <-errCh:
		if e.Code != ChecksumError {
			t.Fatalf("error = %v, want ChecksumError", e.Code)
		}
	case <-time.After(time.Second):
		t.Fatal("checksum error was not reported")
	}

	if got := recvOutput(t, eng); got[0] != frame.NAK {
		t.Fatalf("response = %#v, want NAK", got)
	}
}

// TestBatchedWrite is scenario 6: two payloads from one Write call are
// transmitted back to back, preserving order.
func TestBatchedWrite(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	eng.Write("A B")

	recvOutput(t, eng) // ENQ for A
	eng.Input(frame.ACK)
	gotA := recvOutput(t, eng)
	if string(gotA) != string(frame.Build([]byte("A"))) {
		t.Fatalf("first frame = %#v, want frame for A", gotA)
	}
	eng.Input(frame.ACK)
	recvOutput(t, eng) // EOT for A

	recvOutput(t, eng) // ENQ for B
	eng.Input(frame.ACK)
	gotB := recvOutput(t, eng)
	if string(gotB) != string(frame.Build([]byte("B"))) {
		t.Fatalf("second frame = %#v, want frame for B", gotB)
	}
	eng.Input(frame.ACK)
	recvOutput(t, eng) // EOT for B
}

func TestWriteAllDoesNotSplitOnWhitespace(t *testing.T) {
	eng := newTestEngine(t, testConfig())

	eng.WriteAll([][]byte{[]byte("hello world")})
	recvOutput(t, eng) // ENQ
	eng.Input(frame.ACK)

	got := recvOutput(t, eng)
	want := frame.Build([]byte("hello world"))
	if string(got) != string(want) {
		t.Fatalf("frame = %#v, want %#v", got, want)
	}
	eng.Input(frame.ACK)
	recvOutput(t, eng) // EOT
}

func TestAtMostOneHandlerAttached(t *testing.T) {
	eng := newTestEngine(t, testConfig())
	eng.Write("A")
	recvOutput(t, eng) // ENQ
	if got := eng.activeHandlerKind(); got == handlerNone {
		t.Fatalf("expected a handler to be attached awaiting ACK")
	}
	eng.Input(frame.ACK)
	recvOutput(t, eng) // frame
	if got := eng.activeHandlerKind(); got != handlerMessageForAck {
		t.Fatalf("active handler = %v, want handlerMessageForAck", got)
	}
}
