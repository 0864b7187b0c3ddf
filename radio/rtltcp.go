package radio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

const defaultRTLTCPAddr = "127.0.0.1:1234"

var minFreqHz = uint32(25000000)
var maxFreqHz = uint32(1750000000)

var dongleMagic = [...]byte{'R', 'T', 'L', '0'}

// RTLTCPConn is a connection to an rtl_tcp server along with the dongle
// information it sent on connect.
type RTLTCPConn struct {
	*net.TCPConn
	Info DongleInfo
}

func (c *RTLTCPConn) Connect(addr *net.TCPAddr) (err error) {
	if c.TCPConn, err = net.DialTCP("tcp", nil, addr); err != nil {
		return fmt.Errorf("error connecting to rtl_tcp: %w", err)
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()
	if err = binary.Read(c.TCPConn, binary.BigEndian, &c.Info); err != nil {
		return fmt.Errorf("error getting dongle information: %w", err)
	}
	if !c.Info.Valid() {
		return fmt.Errorf("bad magic number: %q", c.Info.Magic)
	}
	return nil
}

type DongleInfo struct {
	Magic     [4]byte
	Tuner     uint32
	GainCount uint32
}

func (d DongleInfo) Valid() bool { return d.Magic == dongleMagic }

type command struct {
	Cmd   uint8
	Param uint32
}

// Command constants defined in rtl_tcp.c
const (
	centerFreq = iota + 1
	sampleRate
	tunerGainMode
	tunerGain
	freqCorrection
)

func (c *RTLTCPConn) do(cmd uint8, v uint32) error {
	return binary.Write(c.TCPConn, binary.BigEndian, command{cmd, v})
}

func (c *RTLTCPConn) SetCenterFreq(freq uint32) error { return c.do(centerFreq, freq) }

func (c *RTLTCPConn) SetSampleRate(rate uint32) error { return c.do(sampleRate, rate) }

// Set gain in tenths of dB. (197 => 19.7dB)
func (c *RTLTCPConn) SetGain(gain uint32) error { return c.do(tunerGain, gain) }

// SetGainMode selects manual gain when true.
func (c *RTLTCPConn) SetGainMode(manual bool) error {
	if manual {
		return c.do(tunerGainMode, 1)
	}
	return c.do(tunerGainMode, 0)
}

// SetFreqCorrection sets the tuner's crystal correction in signed ppm.
func (c *RTLTCPConn) SetFreqCorrection(ppm int) error {
	return c.do(freqCorrection, uint32(int32(ppm)))
}

func isValidRate(rate uint32) bool {
	return !((rate <= 225000) || (rate > 3200000) ||
		((rate > 300000) && (rate <= 900000)))
}

// rtlDevice is a receive-only, single channel device behind rtl_tcp.
type rtlDevice struct {
	conn *RTLTCPConn
	addr string
	// onClose releases whatever started the server, if anything.
	onClose func() error

	mu    sync.Mutex
	rate  float64
	epoch time.Time
}

func newRTLTCPDevice(ctx context.Context, addr string, ppm int) (*rtlDevice, error) {
	conn, err := connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	d := &rtlDevice{conn: conn, addr: addr, rate: 2048000, epoch: time.Now()}
	if err := conn.SetSampleRate(uint32(d.rate)); err != nil {
		conn.Close()
		return nil, err
	}
	if ppm != 0 {
		if err := conn.SetFreqCorrection(ppm); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return d, nil
}

func connect(ctx context.Context, addr string) (*RTLTCPConn, error) {
	taddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 10; i++ {
		c := &RTLTCPConn{}
		if err = c.Connect(taddr); err == nil {
			return c, nil
		}
		log.Println(err)
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}

func (d *rtlDevice) String() string {
	return fmt.Sprintf("rtl_tcp %s (tuner %d)", d.addr, d.conn.Info.Tuner)
}

func (d *rtlDevice) NumChannels(dir Direction) int {
	if dir == RX {
		return 1
	}
	return 0
}

func (d *rtlDevice) SampleRate(dir Direction) float64 {
	if dir != RX {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

func (d *rtlDevice) SetSampleRate(dir Direction, rate float64) error {
	if dir != RX {
		return ErrNotSupported
	}
	if !isValidRate(uint32(rate)) {
		return ErrRateOutOfRange
	}
	if err := d.conn.SetSampleRate(uint32(rate)); err != nil {
		return err
	}
	d.mu.Lock()
	d.rate = rate
	d.mu.Unlock()
	return nil
}

func (d *rtlDevice) SetTimeNow(t time.Duration) error {
	d.mu.Lock()
	d.epoch = time.Now().Add(-t)
	d.mu.Unlock()
	return nil
}

func (d *rtlDevice) now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.epoch)
}

func (d *rtlDevice) SetFrequency(dir Direction, ch int, hz float64) error {
	if dir != RX || ch != 0 {
		return ErrInvalidChannel
	}
	if hz < float64(minFreqHz) || hz > float64(maxFreqHz) {
		return ErrFrequencyOutOfRange
	}
	return d.conn.SetCenterFreq(uint32(hz))
}

func (d *rtlDevice) SetGain(dir Direction, ch int, db float64) error {
	if dir != RX || ch != 0 {
		return ErrInvalidChannel
	}
	if err := d.conn.SetGainMode(true); err != nil {
		return err
	}
	return d.conn.SetGain(uint32(db * 10))
}

func (d *rtlDevice) TxStream(StreamArgs) (TxStreamer, error) {
	return nil, fmt.Errorf("%w: rtl_tcp cannot transmit", ErrNotSupported)
}

func (d *rtlDevice) RxStream(args StreamArgs) (RxStreamer, error) {
	if len(args.Channels) != 1 || args.Channels[0] != 0 {
		return nil, fmt.Errorf("%w: rtl_tcp has only channel 0", ErrInvalidChannel)
	}
	if args.Format.Size() == 0 {
		return nil, ErrUnknownFormat
	}
	return &rtlRxStream{dev: d, format: args.Format}, nil
}

func (d *rtlDevice) Close() error {
	err := d.conn.Close()
	if d.onClose != nil {
		if cerr := d.onClose(); err == nil {
			err = cerr
		}
	}
	return err
}

type rtlRxStream struct {
	dev    *rtlDevice
	format Format
	buf    []byte

	streaming bool
	finite    bool
	remaining uint64
	startAt   time.Duration
}

const rtlMaxNumSamps = 16384

func (s *rtlRxStream) MaxNumSamps() int { return rtlMaxNumSamps }

func (s *rtlRxStream) IssueStreamCmd(cmd StreamCmd) error {
	switch cmd.Mode {
	case StopContinuous:
		s.streaming = false
		return nil
	case StartContinuous, NumSampsAndDone:
		s.streaming = true
		s.finite = cmd.Mode == NumSampsAndDone
		s.remaining = cmd.NumSamps
		s.startAt = cmd.TimeSpec
		if cmd.StreamNow {
			s.startAt = s.dev.now()
		}
		return nil
	}
	return fmt.Errorf("%w: stream mode %v", ErrNotSupported, cmd.Mode)
}

func (s *rtlRxStream) Recv(buffs [][]byte, nsamps int, timeout time.Duration) (int, RxMetadata) {
	if len(buffs) != 1 {
		return 0, RxMetadata{ErrorCode: ErrorCodeBadPacket, Message: "rtl_tcp has one channel"}
	}
	if !s.streaming || (s.finite && s.remaining == 0) {
		time.Sleep(timeout)
		return 0, RxMetadata{ErrorCode: ErrorCodeTimeout}
	}
	deadline := time.Now().Add(timeout)
	if wait := s.startAt - s.dev.now(); wait > 0 {
		if wait > timeout {
			time.Sleep(timeout)
			return 0, RxMetadata{ErrorCode: ErrorCodeTimeout}
		}
		time.Sleep(wait)
	}
	if s.finite && uint64(nsamps) > s.remaining {
		nsamps = int(s.remaining)
	}
	if cap(s.buf) < 2*nsamps {
		s.buf = make([]byte, 2*nsamps)
	}
	buf := s.buf[:2*nsamps]

	s.dev.conn.SetReadDeadline(deadline)
	n, err := io.ReadAtLeast(s.dev.conn, buf, 2)
	if err == nil && n%2 == 1 {
		_, err = io.ReadFull(s.dev.conn, buf[n:n+1])
		n++
	}
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, RxMetadata{ErrorCode: ErrorCodeTimeout}
		}
		return 0, RxMetadata{ErrorCode: ErrorCodeBrokenChain, Message: err.Error()}
	}
	got := n / 2
	for i := 0; i < got; i++ {
		s.format.Put(buffs[0], i, u8ToComplex(buf[2*i], buf[2*i+1]))
	}
	if s.finite {
		s.remaining -= uint64(got)
	}
	return got, RxMetadata{}
}
