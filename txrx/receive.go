package txrx

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/store"
)

const (
	// rxTimeout bounds every receive after the first.
	rxTimeout = 100 * time.Millisecond
	// rxFirstTimeoutPad is added to the settling time for the first receive.
	rxFirstTimeoutPad = 100 * time.Millisecond
)

// ReceiverError is a fatal receive failure reported by the device.
type ReceiverError struct {
	Code radio.ErrorCode
	Msg  string
}

func (e *ReceiverError) Error() string { return "Receiver error " + e.Msg }

type RxConfig struct {
	Format   radio.Format
	Channels []int
	// NumRequested is the number of samples per channel to record; zero
	// streams until cancelled or timed out.
	NumRequested uint64
	Settling     time.Duration
	// SamplesPerBuffer is the per-channel capacity of one receive call.
	SamplesPerBuffer int
	// Rate is only used to report the write rate needed after an overflow.
	Rate float64
}

type RxStats struct {
	Samples   uint64
	Overflows int
	TimedOut  bool
}

// Receiver pulls sample blocks from an RxStreamer into per-channel sinks.
type Receiver struct {
	RxConfig
	stream radio.RxStreamer
	Log    *log.Logger
}

func NewReceiver(s radio.RxStreamer, cfg RxConfig) (*Receiver, error) {
	if len(cfg.Channels) == 0 {
		return nil, radio.ErrNoChannels
	}
	if cfg.Format.Size() == 0 {
		return nil, radio.ErrUnknownFormat
	}
	if cfg.SamplesPerBuffer <= 0 {
		return nil, fmt.Errorf("bad samples per buffer %d", cfg.SamplesPerBuffer)
	}
	return &Receiver{RxConfig: cfg, stream: s}, nil
}

func (r *Receiver) logger() *log.Logger {
	if r.Log == nil {
		return log.Default()
	}
	return r.Log
}

// RecvToFile records into files derived from base, one per channel.
func (r *Receiver) RecvToFile(ctx context.Context, base string) (RxStats, error) {
	sinks, err := store.OpenSinks(base, len(r.Channels), r.Format, r.Rate)
	if err != nil {
		return RxStats{}, err
	}
	return r.Run(ctx, sinks)
}

// Run streams into sinks until ctx is done, the requested number of
// samples arrived, or a receive times out. The stream is stopped and every
// sink is closed however the loop ends.
func (r *Receiver) Run(ctx context.Context, sinks store.SinkSet) (stats RxStats, err error) {
	if len(sinks) != len(r.Channels) {
		sinks.Close()
		return stats, fmt.Errorf("%w: %d sinks for %d channels", store.ErrSinkMismatch, len(sinks), len(r.Channels))
	}

	size, spb := r.Format.Size(), r.SamplesPerBuffer
	buf := make([]byte, len(r.Channels)*spb*size)
	buffs := make([][]byte, len(r.Channels))
	for i := range buffs {
		buffs[i] = buf[i*spb*size : (i+1)*spb*size]
	}

	cmd := radio.StreamCmd{
		Mode:     radio.StartContinuous,
		NumSamps: r.NumRequested,
		TimeSpec: r.Settling,
	}
	if r.NumRequested > 0 {
		cmd.Mode = radio.NumSampsAndDone
	}
	if err := r.stream.IssueStreamCmd(cmd); err != nil {
		sinks.Close()
		return stats, fmt.Errorf("rx stream start: %w", err)
	}
	defer func() {
		cmd.Mode = radio.StopContinuous
		if serr := r.stream.IssueStreamCmd(cmd); serr != nil && err == nil {
			err = fmt.Errorf("rx stream stop: %w", serr)
		}
		if cerr := sinks.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	overflowMessage := true
	timeout := r.Settling + rxFirstTimeoutPad
	for ctx.Err() == nil && (r.NumRequested == 0 || stats.Samples < r.NumRequested) {
		want := spb
		if left := r.NumRequested - stats.Samples; r.NumRequested > 0 && left < uint64(want) {
			want = int(left)
		}
		n, md := r.stream.Recv(buffs, want, timeout)
		timeout = rxTimeout

		switch md.ErrorCode {
		case radio.ErrorCodeNone:
		case radio.ErrorCodeTimeout:
			r.logger().Println("Timeout while streaming")
			stats.TimedOut = true
			return stats, nil
		case radio.ErrorCodeOverflow:
			stats.Overflows++
			if overflowMessage {
				overflowMessage = false
				r.logger().Printf("Got an overflow indication. Please consider the following:\n"+
					"  Your write medium must sustain a rate of %fMB/s.\n"+
					"  Dropped samples will not be written to the file.\n"+
					"  This message will not appear again.\n",
					r.Rate*float64(size)/1e6)
			}
			continue
		default:
			return stats, &ReceiverError{Code: md.ErrorCode, Msg: md.Strerror()}
		}

		stats.Samples += uint64(n)
		for i, s := range sinks {
			if _, err := s.Write(buffs[i][:n*size]); err != nil {
				return stats, fmt.Errorf("write %s: %w", s.Name(), err)
			}
		}
	}
	return stats, nil
}
