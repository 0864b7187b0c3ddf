package txrx

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/wave"
)

// Session is a configured transmit/receive pair ready to stream.
type Session struct {
	Tx   *Transmitter
	Rx   *Receiver
	File string
}

// Run opens the devices named in cfg, sets them up and streams until ctx
// is done or the receiver finishes.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Printf("Creating the transmit device with: %s...", cfg.TxArgs)
	txdev, err := radio.Open(ctx, cfg.TxArgs)
	if err != nil {
		return fmt.Errorf("tx device: %w", err)
	}
	defer txdev.Close()
	rxdev := txdev
	if cfg.RxArgs != cfg.TxArgs {
		log.Printf("Creating the receive device with: %s...", cfg.RxArgs)
		if rxdev, err = radio.Open(ctx, cfg.RxArgs); err != nil {
			return fmt.Errorf("rx device: %w", err)
		}
		defer rxdev.Close()
	}
	log.Printf("Using TX Device: %s", txdev)
	log.Printf("Using RX Device: %s", rxdev)

	s, err := Setup(txdev, rxdev, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Setup validates cfg against the devices and builds both workers. Nothing
// streams until Session.Run.
func Setup(txdev, rxdev radio.Device, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, _ := radio.ParseFormat(cfg.Type)
	kind, _ := wave.ParseKind(cfg.WaveType)

	txChans, err := radio.ParseChannels(cfg.TxChannels, radio.TX, txdev.NumChannels(radio.TX))
	if err != nil {
		return nil, err
	}
	rxChans, err := radio.ParseChannels(cfg.RxChannels, radio.RX, rxdev.NumChannels(radio.RX))
	if err != nil {
		return nil, err
	}

	log.Printf("Setting TX Rate: %f Msps...", cfg.TxRate/1e6)
	if err := txdev.SetSampleRate(radio.TX, cfg.TxRate); err != nil {
		return nil, fmt.Errorf("tx rate: %w", err)
	}
	txRate := txdev.SampleRate(radio.TX)
	log.Printf("Actual TX Rate: %f Msps...", txRate/1e6)
	log.Printf("Setting RX Rate: %f Msps...", cfg.RxRate/1e6)
	if err := rxdev.SetSampleRate(radio.RX, cfg.RxRate); err != nil {
		return nil, fmt.Errorf("rx rate: %w", err)
	}
	rxRate := rxdev.SampleRate(radio.RX)
	log.Printf("Actual RX Rate: %f Msps...", rxRate/1e6)

	if err := tune(txdev, radio.TX, txChans, cfg.TxFreq, cfg.TxGain); err != nil {
		return nil, err
	}
	if err := tune(rxdev, radio.RX, rxChans, cfg.RxFreq, cfg.RxGain); err != nil {
		return nil, err
	}

	// A constant wave needs some frequency to step through the table.
	waveFreq := cfg.WaveFreq
	if waveFreq == 0 && kind == wave.Const {
		waveFreq = txRate / 2
	}
	tbl, err := wave.New(kind, float32(cfg.Ampl))
	if err != nil {
		return nil, err
	}
	if _, err := WaveStep(waveFreq, txRate, tbl.Len()); err != nil {
		return nil, err
	}

	txStream, err := txdev.TxStream(radio.StreamArgs{Format: radio.FC32, WireFormat: cfg.OTW, Channels: txChans})
	if err != nil {
		return nil, fmt.Errorf("tx stream: %w", err)
	}
	spb := cfg.SamplesPerBuffer
	if spb == 0 {
		spb = txStream.MaxNumSamps() * 10
	}
	tx, err := NewTransmitter(txStream, tbl, waveFreq, txRate, len(txChans), spb)
	if err != nil {
		return nil, err
	}

	rxStream, err := rxdev.RxStream(radio.StreamArgs{Format: format, WireFormat: cfg.OTW, Channels: rxChans})
	if err != nil {
		return nil, fmt.Errorf("rx stream: %w", err)
	}
	rx, err := NewReceiver(rxStream, RxConfig{
		Format:           format,
		Channels:         rxChans,
		NumRequested:     cfg.NumSamps,
		Settling:         cfg.Settling.Duration(),
		SamplesPerBuffer: spb,
		Rate:             rxRate,
	})
	if err != nil {
		return nil, err
	}

	log.Println("Setting device timestamp to 0...")
	if err := txdev.SetTimeNow(0); err != nil {
		return nil, err
	}
	if rxdev != txdev {
		if err := rxdev.SetTimeNow(0); err != nil {
			return nil, err
		}
	}
	return &Session{Tx: tx, Rx: rx, File: cfg.File}, nil
}

func tune(dev radio.Device, dir radio.Direction, chans []int, freq float64, gain *float64) error {
	if freq == 0 && gain == nil {
		return nil
	}
	t, ok := dev.(radio.Tuner)
	if !ok {
		return fmt.Errorf("%w: %s tuning on %s", radio.ErrNotSupported, dir, dev)
	}
	for _, ch := range chans {
		if freq != 0 {
			log.Printf("Setting %s Freq: %f MHz on channel %d...", dir, freq/1e6, ch)
			if err := t.SetFrequency(dir, ch, freq); err != nil {
				return fmt.Errorf("%s channel %d freq: %w", dir, ch, err)
			}
		}
		if gain != nil {
			log.Printf("Setting %s Gain: %f dB on channel %d...", dir, *gain, ch)
			if err := t.SetGain(dir, ch, *gain); err != nil {
				return fmt.Errorf("%s channel %d gain: %w", dir, ch, err)
			}
		}
	}
	return nil
}

// Run streams with both workers. The transmitter runs until ctx is done or
// the receiver returns; a failure in one worker leaves the other to finish
// on its own terms. The first failure is returned.
func (s *Session) Run(ctx context.Context) error {
	txctx, txstop := context.WithCancel(ctx)
	defer txstop()

	var g errgroup.Group
	g.Go(func() error {
		err := s.Tx.Run(txctx)
		if err != nil {
			log.Printf("transmit worker: %v", err)
		}
		return err
	})
	g.Go(func() error {
		defer txstop()
		stats, err := s.Rx.RecvToFile(ctx, s.File)
		log.Printf("received %d samples per channel (%d overflows)", stats.Samples, stats.Overflows)
		var rerr *ReceiverError
		if errors.As(err, &rerr) {
			log.Printf("receive worker: %v", rerr)
		}
		return err
	})
	return g.Wait()
}
