package radio

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"
	"time"
)

const (
	simMaxRate     = 61.44e6
	simMaxNumSamps = 2040
	simAmplitude   = 0.5
	// simTxLatency is how far ahead of the sample clock Send may run.
	simTxLatency = 10 * time.Millisecond
)

// simDevice is an in-process radio paced by its sample clock. Receive
// yields a complex tone per channel; transmit accepts and discards samples.
type simDevice struct {
	txChans int
	rxChans int
	toneHz  float64
	// overflowEvery makes every n-th receive call report an overflow.
	overflowEvery int

	mu    sync.Mutex
	rates [2]float64
	epoch time.Time
	freqs map[tuneKey]float64
	gains map[tuneKey]float64
}

type tuneKey struct {
	dir Direction
	ch  int
}

func newSimDevice(da DeviceArgs) (*simDevice, error) {
	d := &simDevice{
		rates: [2]float64{1e6, 1e6},
		epoch: time.Now(),
		freqs: make(map[tuneKey]float64),
		gains: make(map[tuneKey]float64),
	}
	var err error
	if d.txChans, err = da.Int("tx_channels", 1); err != nil {
		return nil, err
	}
	if d.rxChans, err = da.Int("rx_channels", 1); err != nil {
		return nil, err
	}
	if d.toneHz, err = da.Float("tone", 10e3); err != nil {
		return nil, err
	}
	if d.overflowEvery, err = da.Int("overflow_every", 0); err != nil {
		return nil, err
	}
	if d.txChans < 0 || d.rxChans < 0 {
		return nil, fmt.Errorf("%w: negative channel count", ErrInvalidChannel)
	}
	return d, nil
}

func (d *simDevice) String() string {
	return fmt.Sprintf("sim (tx %d ch, rx %d ch, tone %.0f Hz)", d.txChans, d.rxChans, d.toneHz)
}

func (d *simDevice) NumChannels(dir Direction) int {
	if dir == TX {
		return d.txChans
	}
	return d.rxChans
}

func (d *simDevice) SampleRate(dir Direction) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rates[dir]
}

func (d *simDevice) SetSampleRate(dir Direction, rate float64) error {
	if rate <= 0 || rate > simMaxRate {
		return ErrRateOutOfRange
	}
	d.mu.Lock()
	d.rates[dir] = rate
	d.mu.Unlock()
	return nil
}

func (d *simDevice) SetTimeNow(t time.Duration) error {
	d.mu.Lock()
	d.epoch = time.Now().Add(-t)
	d.mu.Unlock()
	return nil
}

func (d *simDevice) now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.epoch)
}

func (d *simDevice) SetFrequency(dir Direction, ch int, hz float64) error {
	if ch < 0 || ch >= d.NumChannels(dir) {
		return ErrInvalidChannel
	}
	d.mu.Lock()
	d.freqs[tuneKey{dir, ch}] = hz
	d.mu.Unlock()
	return nil
}

func (d *simDevice) SetGain(dir Direction, ch int, db float64) error {
	if ch < 0 || ch >= d.NumChannels(dir) {
		return ErrInvalidChannel
	}
	d.mu.Lock()
	d.gains[tuneKey{dir, ch}] = db
	d.mu.Unlock()
	return nil
}

func (d *simDevice) Close() error { return nil }

func (d *simDevice) checkChannels(dir Direction, chans []int) error {
	if len(chans) == 0 {
		return ErrNoChannels
	}
	for _, ch := range chans {
		if ch < 0 || ch >= d.NumChannels(dir) {
			return fmt.Errorf("%w: %s channel %d", ErrInvalidChannel, dir, ch)
		}
	}
	return nil
}

func (d *simDevice) TxStream(args StreamArgs) (TxStreamer, error) {
	if err := d.checkChannels(TX, args.Channels); err != nil {
		return nil, err
	}
	return &simTxStream{dev: d, nchans: len(args.Channels)}, nil
}

func (d *simDevice) RxStream(args StreamArgs) (RxStreamer, error) {
	if err := d.checkChannels(RX, args.Channels); err != nil {
		return nil, err
	}
	if args.Format.Size() == 0 {
		return nil, ErrUnknownFormat
	}
	return &simRxStream{dev: d, format: args.Format, chans: args.Channels}, nil
}

type simTxStream struct {
	dev    *simDevice
	nchans int
	// ready is the device time at which all accepted samples are played.
	ready time.Duration
}

func (s *simTxStream) MaxNumSamps() int { return simMaxNumSamps }

func (s *simTxStream) Send(buffs [][]complex64, nsamps int, md TxMetadata, timeout time.Duration) (int, error) {
	if nsamps == 0 {
		return 0, nil
	}
	if len(buffs) != s.nchans {
		return 0, fmt.Errorf("sim: send got %d buffers for %d channels", len(buffs), s.nchans)
	}
	for _, b := range buffs {
		if len(b) < nsamps {
			return 0, fmt.Errorf("sim: send buffer holds %d of %d samples", len(b), nsamps)
		}
	}
	now := s.dev.now()
	if md.HasTimeSpec && md.TimeSpec > s.ready {
		s.ready = md.TimeSpec
	}
	if s.ready < now {
		s.ready = now
	}
	wait := s.ready - now - simTxLatency
	if wait > timeout {
		time.Sleep(timeout)
		return 0, nil
	}
	if wait > 0 {
		time.Sleep(wait)
	}
	rate := s.dev.SampleRate(TX)
	s.ready += time.Duration(float64(nsamps) / rate * float64(time.Second))
	return nsamps, nil
}

type simRxStream struct {
	dev    *simDevice
	format Format
	chans  []int

	mu        sync.Mutex
	streaming bool
	finite    bool
	remaining uint64
	startAt   time.Duration
	// produced counts samples consumed since startAt, delivered or dropped.
	produced uint64
	calls    int
}

func (s *simRxStream) MaxNumSamps() int { return simMaxNumSamps }

func (s *simRxStream) IssueStreamCmd(cmd StreamCmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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
		s.produced = 0
		return nil
	}
	return fmt.Errorf("%w: stream mode %v", ErrNotSupported, cmd.Mode)
}

func (s *simRxStream) Recv(buffs [][]byte, nsamps int, timeout time.Duration) (int, RxMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(buffs) != len(s.chans) {
		return 0, RxMetadata{ErrorCode: ErrorCodeBadPacket, Message: "buffer count does not match channels"}
	}
	if !s.streaming || (s.finite && s.remaining == 0) {
		time.Sleep(timeout)
		return 0, RxMetadata{ErrorCode: ErrorCodeTimeout}
	}
	s.calls++

	rate := s.dev.SampleRate(RX)
	want := uint64(nsamps)
	if s.finite && want > s.remaining {
		want = s.remaining
	}
	deadline := s.dev.now() + timeout
	avail := func(now time.Duration) uint64 {
		if now <= s.startAt {
			return 0
		}
		n := uint64((now - s.startAt).Seconds() * rate)
		if n < s.produced {
			return 0
		}
		return n - s.produced
	}
	need := s.startAt + time.Duration(float64(s.produced+want)/rate*float64(time.Second))
	if need > deadline {
		need = deadline
	}
	if wait := need - s.dev.now(); wait > 0 {
		time.Sleep(wait)
	}
	n := avail(s.dev.now())
	if n == 0 {
		return 0, RxMetadata{ErrorCode: ErrorCodeTimeout}
	}
	if n > want {
		n = want
	}

	first := s.produced
	s.produced += n
	if s.finite {
		s.remaining -= n
	}
	if s.dev.overflowEvery > 0 && s.calls%s.dev.overflowEvery == 0 {
		return 0, RxMetadata{ErrorCode: ErrorCodeOverflow}
	}
	w := 2 * math.Pi * s.dev.toneHz / rate
	for i, buf := range buffs {
		off := float64(s.chans[i]) * math.Pi / 4
		for j := 0; j < int(n); j++ {
			v := complex(simAmplitude, 0) * cmplx.Exp(complex(0, w*float64(first+uint64(j))+off))
			s.format.Put(buf, j, v)
		}
	}
	return int(n), RxMetadata{}
}
