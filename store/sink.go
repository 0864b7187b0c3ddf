package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/radio/wav"
)

var ErrSinkMismatch = errors.New("sink count does not match channel count")

// OutFilename names the output for channel idx of n. A single channel keeps
// the base name; otherwise a two digit index goes before the extension.
func OutFilename(base string, n, idx int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s%02d%s", strings.TrimSuffix(base, ext), idx, ext)
}

// SampleSink receives raw sample blocks for one channel.
type SampleSink interface {
	io.Writer
	Name() string
	Close() error
}

type fileSink struct {
	f *os.File
	w io.Writer
	// closer finalizes any container wrapped around f.
	closer func() error
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *fileSink) Name() string { return s.f.Name() }

func (s *fileSink) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer()
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenSink creates path for samples of format f at the given rate. Paths
// ending in ".wav" get a WAV header with I and Q as two channels; anything
// else is a flat concatenation of samples.
func OpenSink(path string, f radio.Format, rate float64) (SampleSink, error) {
	if f.Size() == 0 {
		return nil, radio.ErrUnknownFormat
	}
	fout, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	s := &fileSink{f: fout, w: fout}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		var ww *wav.Writer
		depth := f.Size() * 4
		if f == radio.SC16 {
			ww, err = wav.NewWriter(fout, int(rate), depth, 2)
		} else {
			ww, err = wav.NewFloatWriter(fout, int(rate), depth, 2)
		}
		if err != nil {
			fout.Close()
			return nil, err
		}
		s.w, s.closer = ww, ww.Close
	}
	return s, nil
}

// SinkSet holds one sink per receive channel, in channel order.
type SinkSet []SampleSink

// OpenSinks opens n sinks named by OutFilename. On failure, sinks opened so
// far are closed.
func OpenSinks(base string, n int, f radio.Format, rate float64) (SinkSet, error) {
	if n <= 0 {
		return nil, radio.ErrNoChannels
	}
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	ss := make(SinkSet, 0, n)
	for i := 0; i < n; i++ {
		s, err := OpenSink(OutFilename(base, n, i), f, rate)
		if err != nil {
			ss.Close()
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, nil
}

func (ss SinkSet) Names() []string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = s.Name()
	}
	return names
}

// Close closes every sink and returns the first error.
func (ss SinkSet) Close() error {
	var err error
	for _, s := range ss {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
