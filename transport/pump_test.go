package transport

import (
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/alexeynaumov/rbisync/frame"
	"github.com/alexeynaumov/rbisync/protocol"
)

func TestPumpRoundTrip(t *testing.T) {
	callerPort, peerPort := NewPipePair()

	callerEngine := protocol.NewEngine(log.NewNopLogger(), protocol.DefaultConfig())
	peerEngine := protocol.NewEngine(log.NewNopLogger(), protocol.DefaultConfig())

	go callerEngine.Run()
	go peerEngine.Run()
	defer callerEngine.Close()
	defer peerEngine.Close()

	callerPump := NewPump(log.NewNopLogger(), callerPort, callerEngine)
	peerPump := NewPump(log.NewNopLogger(), peerPort, peerEngine)
	callerPump.Start()
	peerPump.Start()
	defer callerPump.Close()
	defer peerPump.Close()

	received := make(chan []byte, 1)
	peerEngine.OnRead(func(payload []byte) { received <- payload })

	callerEngine.Write("hi")

	select {
	case payload := <-received:
		if string(payload) != "hi" {
			t.Fatalf("payload = %q, want %q", payload, "hi")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the message")
	}
}

func TestFrameBuildMatchesWireConstants(t *testing.T) {
	built := frame.Build([]byte("A"))
	if built[0] != frame.STX {
		t.Fatalf("first byte = %#x, want STX", built[0])
	}
}
