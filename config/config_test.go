package config

import (
	"testing"
	"time"

	"github.com/alexeynaumov/rbisync/transport"
)

func TestLoadStringLink(t *testing.T) {
	cfg, err := LoadString(`
		[link]
		device = "/dev/ttyUSB0"
		baud = 19200
		data_bits = 8
		parity = "even"
		stop_bits = "2"
		enq_ack_timeout_ms = 300
		max_retries = 3
		ignore_checksum_errors = false
	`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("Device = %q, want %q", cfg.Serial.Device, "/dev/ttyUSB0")
	}
	if cfg.Serial.Baud != 19200 {
		t.Errorf("Baud = %d, want %d", cfg.Serial.Baud, 19200)
	}
	if cfg.Serial.Parity != transport.ParityEven {
		t.Errorf("Parity = %v, want %v", cfg.Serial.Parity, transport.ParityEven)
	}
	if cfg.Serial.StopBits != transport.StopBits2 {
		t.Errorf("StopBits = %v, want %v", cfg.Serial.StopBits, transport.StopBits2)
	}
	if cfg.Engine.EnqAckTimeout != 300*time.Millisecond {
		t.Errorf("EnqAckTimeout = %v, want %v", cfg.Engine.EnqAckTimeout, 300*time.Millisecond)
	}
	if cfg.Engine.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want %d", cfg.Engine.MaxRetries, 3)
	}
	if cfg.Engine.IgnoreChecksumErrors {
		t.Errorf("IgnoreChecksumErrors = true, want false")
	}
}

func TestLoadStringDefaultsWithoutLinkTable(t *testing.T) {
	cfg, err := LoadString(``)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if cfg.Engine.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want default %d", cfg.Engine.MaxRetries, 2)
	}
	if !cfg.Engine.IgnoreChecksumErrors {
		t.Errorf("IgnoreChecksumErrors = false, want default true")
	}
}

func TestLoadStringTelemetry(t *testing.T) {
	cfg, err := LoadString(`
		[telemetry]
		redis_addr = "localhost:6379"
		redis_channel = "mylink"
	`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if cfg.Telemetry.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.Telemetry.RedisAddr, "localhost:6379")
	}
	if cfg.Telemetry.RedisChannel != "mylink" {
		t.Errorf("RedisChannel = %q, want %q", cfg.Telemetry.RedisChannel, "mylink")
	}
}

func TestLoadStringRejectsUnrecognisedParameter(t *testing.T) {
	if _, err := LoadString(`
		[link]
		device = "/dev/ttyUSB0"
		bogus = 1
	`); err == nil {
		t.Fatal("expected error for unrecognised parameter")
	}
}
