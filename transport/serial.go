package transport

import (
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// Parity selects the line's parity checking mode.
type Parity string

const (
	ParityNone  Parity = "none"
	ParityEven  Parity = "even"
	ParityOdd   Parity = "odd"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// StopBits selects the number of stop bits per character.
type StopBits string

const (
	StopBits1   StopBits = "1"
	StopBits1_5 StopBits = "1.5"
	StopBits2   StopBits = "2"
)

// SerialConfig describes the line discipline the façade forwards to the
// platform serial driver, per the protocol's transport configuration.
type SerialConfig struct {
	Device      string
	Baud        int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
}

// SerialPort is the concrete Port implementation for real hardware,
// backed by github.com/daedaluz/goserial. It configures the line for raw
// mode: no canonical processing, no echo, no output post-processing, no
// CR/LF translation, and blocking reads of at least one byte.
type SerialPort struct {
	port *serial.Port
}

// OpenSerial opens and configures device per cfg.
func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	opts := serial.NewOptions().SetReadTimeout(cfg.ReadTimeout)
	p, err := serial.Open(cfg.Device, opts)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}

	attrs, err := p.GetAttr()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: get attrs for %s: %w", cfg.Device, err)
	}

	attrs.MakeRaw()

	dataBits, err := dataBitsFlag(cfg.DataBits)
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.Cflag &^= serial.CSIZE | serial.PARENB | serial.PARODD | serial.CMSPAR | serial.CSTOPB
	attrs.Cflag |= dataBits

	switch cfg.Parity {
	case ParityNone, "":
	case ParityEven:
		attrs.Cflag |= serial.PARENB
	case ParityOdd:
		attrs.Cflag |= serial.PARENB | serial.PARODD
	case ParityMark:
		attrs.Cflag |= serial.PARENB | serial.PARODD | serial.CMSPAR
	case ParitySpace:
		attrs.Cflag |= serial.PARENB | serial.CMSPAR
	default:
		p.Close()
		return nil, fmt.Errorf("transport: unsupported parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case StopBits1, "":
	case StopBits2, StopBits1_5:
		attrs.Cflag |= serial.CSTOPB
	default:
		p.Close()
		return nil, fmt.Errorf("transport: unsupported stop bits %q", cfg.StopBits)
	}

	baud, err := baudRateFlag(cfg.Baud)
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.SetSpeed(baud)

	if err := p.SetAttr(serial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, fmt.Errorf("transport: set attrs for %s: %w", cfg.Device, err)
	}

	return &SerialPort{port: p}, nil
}

func (s *SerialPort) Read(b []byte) (int, error)  { return s.port.Read(b) }
func (s *SerialPort) Write(b []byte) (int, error) { return s.port.Write(b) }
func (s *SerialPort) Close() error                { return s.port.Close() }

// SetReadTimeout bounds how long a subsequent Read blocks for a byte.
func (s *SerialPort) SetReadTimeout(timeout time.Duration) {
	s.port.SetReadTimeout(timeout)
}

func dataBitsFlag(bits int) (serial.CFlag, error) {
	switch bits {
	case 5:
		return serial.CS5, nil
	case 6:
		return serial.CS6, nil
	case 7:
		return serial.CS7, nil
	case 8, 0:
		return serial.CS8, nil
	default:
		return 0, fmt.Errorf("transport: unsupported data bits %d", bits)
	}
}

func baudRateFlag(baud int) (serial.CFlag, error) {
	switch baud {
	case 9600:
		return serial.B9600, nil
	case 19200:
		return serial.B19200, nil
	case 38400:
		return serial.B38400, nil
	case 57600:
		return serial.B57600, nil
	case 115200, 0:
		return serial.B115200, nil
	default:
		return 0, fmt.Errorf("transport: unsupported baud rate %d", baud)
	}
}
