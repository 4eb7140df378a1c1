/*
Package config implements a parser for the link's configuration
represented in the TOML format: https://github.com/toml-lang/toml.

The serial line and the protocol engine's timing/retry/checksum policy
are configured from a single "[link]" table, plus an optional
"[telemetry]" table for the Redis publisher. Every field overrides a
compiled-in default; an absent table is equivalent to every field being
absent.

	[link]

	# device is the serial port's device path.
	device = "/dev/ttyUSB0"

	# baud is the line speed in bits per second.
	baud = 9600

	# data_bits is the number of data bits per character: 5, 6, 7 or 8.
	data_bits = 8

	# parity is one of "none", "even", "odd", "mark", "space".
	parity = "none"

	# stop_bits is one of "1", "1.5", "2".
	stop_bits = "1"

	# enq_ack_timeout_ms is how long the engine waits for an ACK after
	# sending ENQ, before its first retry. Default 250ms.
	enq_ack_timeout_ms = 250

	# enq_ack_retry_timeout_ms is how long the engine waits for an ACK
	# on each ENQ retry. Default 1500ms.
	enq_ack_retry_timeout_ms = 1500

	# msg_ack_timeout_ms is how long the engine waits for an ACK after
	# sending a framed message. Default 500ms.
	msg_ack_timeout_ms = 500

	# ack_msg_timeout_ms is how long the engine waits to receive a framed
	# message after acknowledging the peer's ENQ. Default 100ms.
	ack_msg_timeout_ms = 100

	# ack_eot_timeout_ms is how long the engine waits for EOT after
	# acknowledging a received message. Default 125ms.
	ack_eot_timeout_ms = 125

	# max_retries bounds how many times the engine retries an
	# unacknowledged ENQ before giving up on the queued frame. Default 2.
	max_retries = 2

	# ignore_checksum_errors, if true, treats every received frame as
	# valid regardless of its BCC. Defaults to true for compatibility
	# with noisy links; production deployments should set this false.
	ignore_checksum_errors = true

	[telemetry]

	# redis_addr, if set, enables publishing of engine lifecycle events
	# to Redis pub/sub.
	redis_addr = "localhost:6379"
	redis_password = ""
	redis_db = 0
	redis_channel = "rbisync"
*/
package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/alexeynaumov/rbisync/protocol"
	"github.com/alexeynaumov/rbisync/transport"
)

// Config contains the parsed configuration for a single link instance.
type Config struct {
	// The entire tree as a map as parsed from the TOML representation.
	// Apps may access this tree to handle their own config tables.
	Map map[string]interface{}

	Serial   transport.SerialConfig
	Engine   protocol.Config
	Telemetry TelemetryConfig
}

// TelemetryConfig configures the optional Redis publisher. RedisAddr
// being empty means telemetry is disabled.
type TelemetryConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

func toBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("supplied value could not be parsed as a bool")
}

// go-toml's ToMap function represents numbers as either uint64 or int64.
// So when we are converting numbers, we need to figure out which one it
// has picked and range check to ensure that the number from the config
// fits within the range of the destination type.
func toUint32(v interface{}) (uint32, error) {
	if b, ok := v.(int64); ok {
		if b < 0x0 || b > 0xffffffff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return uint32(b), nil
	} else if b, ok := v.(uint64); ok {
		if b > 0xffffffff {
			return 0, fmt.Errorf("value %x out of range", b)
		}
		return uint32(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toInt(v interface{}) (int, error) {
	u, err := toUint32(v)
	return int(u), err
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toDurationMs(v interface{}) (time.Duration, error) {
	u, err := toUint32(v)
	return time.Duration(u) * time.Millisecond, err
}

func toParity(v interface{}) (transport.Parity, error) {
	s, err := toString(v)
	if err != nil {
		return "", err
	}
	switch transport.Parity(s) {
	case transport.ParityNone, transport.ParityEven, transport.ParityOdd, transport.ParityMark, transport.ParitySpace:
		return transport.Parity(s), nil
	}
	return "", fmt.Errorf("expect 'none', 'even', 'odd', 'mark' or 'space'")
}

func toStopBits(v interface{}) (transport.StopBits, error) {
	s, err := toString(v)
	if err != nil {
		return "", err
	}
	switch transport.StopBits(s) {
	case transport.StopBits1, transport.StopBits1_5, transport.StopBits2:
		return transport.StopBits(s), nil
	}
	return "", fmt.Errorf("expect '1', '1.5' or '2'")
}

func newLinkConfig(lcfg map[string]interface{}) (transport.SerialConfig, protocol.Config, error) {
	sc := transport.SerialConfig{DataBits: 8, Baud: 9600}
	ec := protocol.DefaultConfig()

	for k, v := range lcfg {
		var err error
		switch k {
		case "device":
			sc.Device, err = toString(v)
		case "baud":
			sc.Baud, err = toInt(v)
		case "data_bits":
			sc.DataBits, err = toInt(v)
		case "parity":
			sc.Parity, err = toParity(v)
		case "stop_bits":
			sc.StopBits, err = toStopBits(v)
		case "enq_ack_timeout_ms":
			ec.EnqAckTimeout, err = toDurationMs(v)
		case "enq_ack_retry_timeout_ms":
			ec.EnqAckRetryTimeout, err = toDurationMs(v)
		case "msg_ack_timeout_ms":
			ec.MsgAckTimeout, err = toDurationMs(v)
		case "ack_msg_timeout_ms":
			ec.AckMsgTimeout, err = toDurationMs(v)
		case "ack_eot_timeout_ms":
			ec.AckEotTimeout, err = toDurationMs(v)
		case "max_retries":
			var retries int
			retries, err = toInt(v)
			ec.MaxRetries = retries
		case "ignore_checksum_errors":
			ec.IgnoreChecksumErrors, err = toBool(v)
		default:
			return sc, ec, fmt.Errorf("unrecognised parameter %q", k)
		}
		if err != nil {
			return sc, ec, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return sc, ec, nil
}

func newTelemetryConfig(tcfg map[string]interface{}) (TelemetryConfig, error) {
	out := TelemetryConfig{RedisChannel: "rbisync"}
	for k, v := range tcfg {
		var err error
		switch k {
		case "redis_addr":
			out.RedisAddr, err = toString(v)
		case "redis_password":
			out.RedisPassword, err = toString(v)
		case "redis_db":
			out.RedisDB, err = toInt(v)
		case "redis_channel":
			out.RedisChannel, err = toString(v)
		default:
			return out, fmt.Errorf("unrecognised parameter %q", k)
		}
		if err != nil {
			return out, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return out, nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := &Config{
		Map:       tree.ToMap(),
		Serial:    transport.SerialConfig{DataBits: 8, Baud: 9600},
		Engine:    protocol.DefaultConfig(),
		Telemetry: TelemetryConfig{RedisChannel: "rbisync"},
	}

	if got, ok := cfg.Map["link"]; ok {
		lmap, ok := got.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("'link' must be a table, e.g. '[link]'")
		}
		sc, ec, err := newLinkConfig(lmap)
		if err != nil {
			return nil, fmt.Errorf("link: %v", err)
		}
		cfg.Serial, cfg.Engine = sc, ec
	}

	if got, ok := cfg.Map["telemetry"]; ok {
		tmap, ok := got.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("'telemetry' must be a table, e.g. '[telemetry]'")
		}
		tc, err := newTelemetryConfig(tmap)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %v", err)
		}
		cfg.Telemetry = tc
	}

	return cfg, nil
}

// LoadFile loads configuration from the specified file.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from the specified string.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}
