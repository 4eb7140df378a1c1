package rbisync

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/alexeynaumov/rbisync/config"
	"github.com/alexeynaumov/rbisync/protocol"
	"github.com/alexeynaumov/rbisync/telemetry"
	"github.com/alexeynaumov/rbisync/transport"
)

// Link is the public façade composing a transport.Port with a
// protocol.Engine: it owns the serial port, the engine's run loop, and
// the reader/writer pump bridging the two.
type Link struct {
	logger    log.Logger
	engine    *protocol.Engine
	port      transport.Port
	pump      *transport.Pump
	publisher *telemetry.Publisher

	userOnRead  func(payload []byte)
	userOnError func(*protocol.Error)
}

// Open configures and opens the serial port named by cfg.Serial, starts
// the protocol engine, and wires the two together. If cfg.Telemetry.RedisAddr
// is set, engine lifecycle events are also published to Redis.
func Open(logger log.Logger, cfg *config.Config) (*Link, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	port, err := transport.OpenSerial(cfg.Serial)
	if err != nil {
		return nil, fmt.Errorf("rbisync: %w", err)
	}

	return newLink(logger, port, cfg)
}

// OpenWithPort wires a Link to an already-open transport.Port, bypassing
// serial hardware entirely. This is how tests (and any caller bridging a
// Pipe) construct a Link.
func OpenWithPort(logger log.Logger, port transport.Port, cfg *config.Config) (*Link, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return newLink(logger, port, cfg)
}

func newLink(logger log.Logger, port transport.Port, cfg *config.Config) (*Link, error) {
	engine := protocol.NewEngine(log.With(logger, "component", "engine"), cfg.Engine)

	var publisher *telemetry.Publisher
	if cfg.Telemetry.RedisAddr != "" {
		p, err := telemetry.NewPublisher(
			cfg.Telemetry.RedisAddr,
			cfg.Telemetry.RedisPassword,
			cfg.Telemetry.RedisDB,
			cfg.Telemetry.RedisChannel,
		)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("rbisync: %w", err)
		}
		publisher = p
	}

	l := &Link{
		logger:    logger,
		engine:    engine,
		port:      port,
		publisher: publisher,
	}

	// publisher.Attach chains its own OnStateChange/OnError hooks onto
	// the engine rather than replacing whatever is registered next, so
	// the user-forwarding registrations below (and any later
	// metrics.Collector.Attach against l.Engine()) still fire.
	publisher.Attach(engine)

	engine.OnRead(func(payload []byte) {
		if l.userOnRead != nil {
			l.userOnRead(payload)
		}
	})
	engine.OnError(func(e *protocol.Error) {
		if l.userOnError != nil {
			l.userOnError(e)
		}
	})

	go engine.Run()
	l.pump = transport.NewPump(log.With(logger, "component", "pump"), port, engine)
	l.pump.Start()

	level.Info(l.logger).Log("message", "link open")
	return l, nil
}

// Write enqueues message for transmission, splitting a single string on
// whitespace into one payload per field.
func (l *Link) Write(message string) { l.engine.Write(message) }

// WriteAll enqueues each payload verbatim, without splitting.
func (l *Link) WriteAll(payloads [][]byte) { l.engine.WriteAll(payloads) }

// Engine returns the underlying protocol engine, for callers that need
// to attach additional observers (e.g. a metrics.Collector) beyond
// OnRead/OnError.
func (l *Link) Engine() *protocol.Engine { return l.engine }

// OnRead registers the callback invoked once per successfully received
// frame. Safe to call at any time; only the most recently registered
// callback is invoked.
func (l *Link) OnRead(cb func(payload []byte)) { l.userOnRead = cb }

// OnError registers the callback invoked per reported protocol failure,
// in addition to (never instead of) publishing to telemetry when
// telemetry is enabled.
func (l *Link) OnError(cb func(*protocol.Error)) { l.userOnError = cb }

// Close stops the pump, the engine, and the underlying port, cancelling
// all armed timers and dropping the outbound queue.
func (l *Link) Close() error {
	l.pump.Close()
	l.engine.Close()
	if l.publisher != nil {
		l.publisher.Close()
	}
	level.Info(l.logger).Log("message", "link closed")
	return nil
}
