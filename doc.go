/*
Package rbisync implements a point-to-point binary synchronous
communications (BSC-style) link over an asynchronous serial port: an
ENQ/ACK handshake, framed message transfer with a trailing block check
character, and EOT termination, run as a single-threaded cooperative
event loop that never blocks the caller or the I/O goroutines on a failed
exchange.

The protocol engine itself lives in package protocol; this package is the
public façade that composes protocol.Engine with a real (or pipe-backed)
transport.Port and forwards serial line configuration (device path, baud,
data bits, parity, stop bits) down to the transport.

Usage

	cfg, err := config.LoadFile("./link.toml")
	if err != nil {
		log.Fatal(err)
	}

	link, err := rbisync.Open(logger, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer link.Close()

	link.OnRead(func(payload []byte) {
		fmt.Printf("received: %s\n", payload)
	})
	link.OnError(func(err *protocol.Error) {
		log.Printf("link error: %v", err)
	})

	link.Write("hello")

Scope

This package and protocol implement the handshake engine described above.
The platform serial I/O driver itself (see package transport), the
interactive debug GUI, settings persistence, and input-history UI are
external collaborators; only the interfaces this package consumes from
them are specified here.
*/
package rbisync
