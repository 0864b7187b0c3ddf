package radio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRateOutOfRange = errors.New("sample rate out of range")
var ErrFrequencyOutOfRange = errors.New("frequency out of range")
var ErrUnknownDevice = errors.New("unknown device type")
var ErrNotSupported = errors.New("not supported by device")

type Direction int

const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// Device is the narrow slice of a radio front end the streaming engine needs.
type Device interface {
	NumChannels(dir Direction) int
	SampleRate(dir Direction) float64
	SetSampleRate(dir Direction, rate float64) error
	// SetTimeNow resets the device clock; stream times are relative to it.
	SetTimeNow(t time.Duration) error
	TxStream(args StreamArgs) (TxStreamer, error)
	RxStream(args StreamArgs) (RxStreamer, error)
	String() string
	Close() error
}

// Tuner is implemented by devices with tunable front ends.
type Tuner interface {
	SetFrequency(dir Direction, ch int, hz float64) error
	SetGain(dir Direction, ch int, db float64) error
}

type StreamArgs struct {
	Format     Format
	WireFormat string
	Channels   []int
}

type TxMetadata struct {
	StartOfBurst bool
	EndOfBurst   bool
	HasTimeSpec  bool
	TimeSpec     time.Duration
}

type TxStreamer interface {
	MaxNumSamps() int
	// Send transmits nsamps samples from each channel buffer. A zero
	// length send carrying EndOfBurst closes the burst.
	Send(buffs [][]complex64, nsamps int, md TxMetadata, timeout time.Duration) (int, error)
}

type StreamMode int

const (
	StartContinuous StreamMode = iota
	StopContinuous
	NumSampsAndDone
)

func (m StreamMode) String() string {
	switch m {
	case StartContinuous:
		return "start-continuous"
	case StopContinuous:
		return "stop-continuous"
	case NumSampsAndDone:
		return "num-samps-and-done"
	}
	return fmt.Sprintf("StreamMode(%d)", int(m))
}

type StreamCmd struct {
	Mode      StreamMode
	NumSamps  uint64
	StreamNow bool
	TimeSpec  time.Duration
}

type ErrorCode int

const (
	ErrorCodeNone ErrorCode = iota
	ErrorCodeTimeout
	ErrorCodeLateCommand
	ErrorCodeBrokenChain
	ErrorCodeOverflow
	ErrorCodeAlignment
	ErrorCodeBadPacket
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeNone:        "none",
	ErrorCodeTimeout:     "timeout",
	ErrorCodeLateCommand: "late command",
	ErrorCodeBrokenChain: "broken chain",
	ErrorCodeOverflow:    "overflow",
	ErrorCodeAlignment:   "alignment",
	ErrorCodeBadPacket:   "bad packet",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// RxMetadata classifies a single receive call.
type RxMetadata struct {
	ErrorCode ErrorCode
	// Message is an optional device-specific detail.
	Message string
}

func (md RxMetadata) Strerror() string {
	if md.Message == "" {
		return "ERROR_CODE_" + md.ErrorCode.String()
	}
	return fmt.Sprintf("ERROR_CODE_%s: %s", md.ErrorCode, md.Message)
}

type RxStreamer interface {
	MaxNumSamps() int
	IssueStreamCmd(cmd StreamCmd) error
	// Recv fills up to nsamps samples into each channel buffer, encoded in
	// the stream format, waiting at most timeout.
	Recv(buffs [][]byte, nsamps int, timeout time.Duration) (int, RxMetadata)
}

// Open constructs a device from a "key=value,..." argument string.
func Open(ctx context.Context, args string) (Device, error) {
	da, err := ParseDeviceArgs(args)
	if err != nil {
		return nil, err
	}
	switch da.Type() {
	case "sim", "":
		return newSimDevice(da)
	case "rtltcp", "rtlsdr":
		ppm, err := da.Int("ppm", 0)
		if err != nil {
			return nil, err
		}
		addr := da.Get("addr", defaultRTLTCPAddr)
		if da.Type() == "rtlsdr" {
			return newRTLSDR(ctx, da.Get("serial", "0"), addr, ppm)
		}
		return newRTLTCPDevice(ctx, addr, ppm)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, da.Type())
}
