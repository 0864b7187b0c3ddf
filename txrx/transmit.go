package txrx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/wave"
)

var ErrNyquist = errors.New("wave freq out of Nyquist zone")
var ErrTableResolution = errors.New("wave freq too small for table")

const (
	txTimeout = 100 * time.Millisecond
	// txStartDelay gives the device time to fill its buffers before the
	// first burst goes out.
	txStartDelay = 500 * time.Millisecond
)

// WaveStep returns the table index increment per sample that produces a
// tone of freq Hz at the given sample rate.
func WaveStep(freq, rate float64, tableLen int) (int, error) {
	if math.Abs(freq) > rate/2 {
		return 0, fmt.Errorf("%w: %g Hz at %g S/s", ErrNyquist, freq, rate)
	}
	if rate/math.Abs(freq) > float64(tableLen)/2 {
		return 0, fmt.Errorf("%w: %g Hz at %g S/s with %d entries", ErrTableResolution, freq, rate, tableLen)
	}
	return int(math.Round(freq / rate * float64(tableLen))), nil
}

// Transmitter sends a continuous waveform until its context is done.
type Transmitter struct {
	stream radio.TxStreamer
	table  *wave.Table
	step   int
	nchans int
	spb    int
	// index is the table position of the last sample generated; it carries
	// over between buffers so the phase stays continuous.
	index int
}

func NewTransmitter(s radio.TxStreamer, tbl *wave.Table, freq, rate float64, nchans, spb int) (*Transmitter, error) {
	step, err := WaveStep(freq, rate, tbl.Len())
	if err != nil {
		return nil, err
	}
	if nchans <= 0 {
		return nil, radio.ErrNoChannels
	}
	if spb <= 0 {
		return nil, fmt.Errorf("bad samples per buffer %d", spb)
	}
	return &Transmitter{stream: s, table: tbl, step: step, nchans: nchans, spb: spb}, nil
}

func (t *Transmitter) Step() int { return t.step }

// fill writes the next len(buf) waveform samples.
func (t *Transmitter) fill(buf []complex64) {
	n := t.table.Len()
	for i := range buf {
		t.index = (t.index + t.step) % n
		if t.index < 0 {
			t.index += n
		}
		buf[i] = t.table.At(uint(t.index))
	}
}

// Run sends buffers until ctx is done, then closes the burst with an empty
// end-of-burst send. Send failures are fatal.
func (t *Transmitter) Run(ctx context.Context) error {
	buf := make([]complex64, t.spb)
	// Every channel transmits the same waveform out of one buffer.
	buffs := make([][]complex64, t.nchans)
	for i := range buffs {
		buffs[i] = buf
	}
	md := radio.TxMetadata{
		StartOfBurst: true,
		HasTimeSpec:  true,
		TimeSpec:     txStartDelay,
	}
	for ctx.Err() == nil {
		t.fill(buf)
		if _, err := t.stream.Send(buffs, len(buf), md, txTimeout); err != nil {
			return fmt.Errorf("tx send: %w", err)
		}
		md.StartOfBurst, md.HasTimeSpec = false, false
	}
	md.EndOfBurst = true
	if _, err := t.stream.Send(buffs, 0, md, txTimeout); err != nil {
		return fmt.Errorf("tx end of burst: %w", err)
	}
	return nil
}
