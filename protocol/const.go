package protocol

import "time"

// Engine states, per the protocol's state machine. The engine always
// returns to StateIdle; none of these are permanently terminal.
const (
	StateIdle       = "idle"
	StateAboutToTx  = "about_to_tx"
	StateTxStarted  = "tx_started"
	StateTxFinished = "tx_finished"
	StateRxStarted  = "rx_started"
	StateRxFinished = "rx_finished"
)

// MaxRetry bounds RetryCounter: an engine emits at most MaxRetry+1 ENQ
// bytes for a single queued frame before giving up on it.
const MaxRetry = 2

// Default phase timeouts, overridable via Config. EnqAckRetryTimeout is
// used for the retries after the first EnqAckTimeout wait; the source
// schedule uses the same interval for both retries.
const (
	DefaultEnqAckTimeout      = 250 * time.Millisecond
	DefaultEnqAckRetryTimeout = 1500 * time.Millisecond
	DefaultMsgAckTimeout      = 500 * time.Millisecond
	DefaultAckMsgTimeout      = 100 * time.Millisecond
	DefaultAckEotTimeout      = 125 * time.Millisecond
)

// DefaultIgnoreChecksumErrors preserves the source behaviour of treating a
// BCC mismatch as valid unless explicitly configured otherwise.
const DefaultIgnoreChecksumErrors = true

// Config holds the tunable timing and checksum policy for an Engine. The
// zero value is not usable directly; use DefaultConfig to obtain sane
// defaults and override individual fields.
type Config struct {
	EnqAckTimeout        time.Duration
	EnqAckRetryTimeout    time.Duration
	MsgAckTimeout        time.Duration
	AckMsgTimeout        time.Duration
	AckEotTimeout        time.Duration
	MaxRetries           int
	IgnoreChecksumErrors bool
}

// DefaultConfig returns the definitive timing and retry schedule.
func DefaultConfig() Config {
	return Config{
		EnqAckTimeout:        DefaultEnqAckTimeout,
		EnqAckRetryTimeout:   DefaultEnqAckRetryTimeout,
		MsgAckTimeout:        DefaultMsgAckTimeout,
		AckMsgTimeout:        DefaultAckMsgTimeout,
		AckEotTimeout:        DefaultAckEotTimeout,
		MaxRetries:           MaxRetry,
		IgnoreChecksumErrors: DefaultIgnoreChecksumErrors,
	}
}

func sanitiseConfig(cfg Config) Config {
	d := DefaultConfig()
	if cfg.EnqAckTimeout == 0 {
		cfg.EnqAckTimeout = d.EnqAckTimeout
	}
	if cfg.EnqAckRetryTimeout == 0 {
		cfg.EnqAckRetryTimeout = d.EnqAckRetryTimeout
	}
	if cfg.MsgAckTimeout == 0 {
		cfg.MsgAckTimeout = d.MsgAckTimeout
	}
	if cfg.AckMsgTimeout == 0 {
		cfg.AckMsgTimeout = d.AckMsgTimeout
	}
	if cfg.AckEotTimeout == 0 {
		cfg.AckEotTimeout = d.AckEotTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	return cfg
}
