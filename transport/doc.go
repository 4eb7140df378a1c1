// Package transport bridges a protocol.Engine to an actual byte stream.
// It specifies nothing about framing or handshake semantics; it only
// moves bytes in port order between a Port and an Engine's Input/Output
// channels, via a Pump.
package transport
