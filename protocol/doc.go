/*
Package protocol implements the handshake engine for a point-to-point
binary synchronous communications (BSC-style) link: ENQ/ACK negotiation,
framed message transfer with a trailing block check character, and EOT
termination, run as a single-threaded cooperative event loop.

The engine is deliberately transport-agnostic. It consumes inbound bytes
handed to it one at a time via Input, and produces outbound byte chunks on
the channel returned by Output; something else (see package transport)
is responsible for actually reading and writing a serial port.

Usage

	cfg := protocol.DefaultConfig()
	eng := protocol.NewEngine(logger, cfg)
	eng.OnRead(func(payload []byte) {
		fmt.Printf("received: %s\n", payload)
	})
	eng.OnError(func(err *protocol.Error) {
		log.Printf("protocol error: %v", err)
	})
	go eng.Run()
	defer eng.Close()

	eng.Write("hello")

Response handlers

At most one of four response handler variants is attached to the engine
at any instant: ENQ_for_ACK while waiting for the peer to acknowledge our
ENQ, MESSAGE_for_ACK while waiting for the peer to acknowledge our framed
message, ACK_for_MESSAGE while waiting to receive the peer's framed
message after we acknowledged their ENQ, and ACK_for_EOT while waiting
for the peer's final EOT. Each variant owns its own timeout and transition
logic; the engine never runs more than one concurrently, and each is torn
down (its timer stopped) the instant its phase ends.

State machine

The engine's states are IDLE, ABOUT_TO_TX, TX_STARTED, RX_STARTED and
RX_FINISHED. None are permanently terminal: every phase, whether it
succeeds, times out, or collides with an inbound ENQ, returns the engine
to IDLE. After every outcome except a collision the next queued outbound
message (if any) begins immediately; after a collision the head message
stays queued and is not restarted until a later Write or the end of an
inbound exchange starts the engine again.
*/
package protocol
