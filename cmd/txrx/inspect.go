package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/radio/wav"
	"github.com/chzchzchz/txrx/spectrum"
)

var (
	inspectType string
	inspectRate float64
	inspectBins int
	inspectFFTs int
)

// openCapture returns the sample data of a capture along with its format
// and rate. WAV headers override the flags.
func openCapture(fn string) (io.Reader, *os.File, radio.Format, float64, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	if !strings.EqualFold(filepath.Ext(fn), ".wav") {
		format, err := radio.ParseFormat(inspectType)
		if err != nil {
			f.Close()
			return nil, nil, 0, 0, err
		}
		return f, f, format, inspectRate, nil
	}
	wr, err := wav.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, 0, 0, err
	}
	format := radio.SC16
	switch {
	case wr.Float() && wr.BitDepth() == 64:
		format = radio.FC64
	case wr.Float():
		format = radio.FC32
	}
	return io.LimitReader(wr, int64(wr.DataLen())), f, format, float64(wr.SampleRate()), nil
}

func inspect(w io.Writer, fn string) error {
	if inspectBins < 2 {
		return fmt.Errorf("need at least 2 bins, got %d", inspectBins)
	}
	if inspectFFTs < 1 {
		return fmt.Errorf("need at least 1 FFT, got %d", inspectFFTs)
	}
	r, f, format, rate, err := openCapture(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	if rate <= 0 {
		return fmt.Errorf("%w: need --rate", radio.ErrRateOutOfRange)
	}

	// Count every sample while the spectrum looks at the first batches.
	cr := &countReader{r: r}
	iq := radio.NewIQReader(cr, format)
	p := spectrum.NewPower(rate, inspectBins, inspectFFTs)
	ffts := inspectFFTs
	merr := p.Measure(iq.Batch64(inspectBins, inspectFFTs))
	if merr == io.EOF {
		ffts = 0
	}
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %s, %d samples (%.3fs at %g S/s)\n",
		fn, format, cr.n/int64(format.Size()), float64(cr.n/int64(format.Size()))/rate, rate)
	if ffts == 0 {
		fmt.Fprintf(w, "too short for %d FFTs of %d bins\n", inspectFFTs, inspectBins)
		return nil
	}
	hz, db := p.Peak()
	fmt.Fprintf(w, "peak %.1f Hz at %.1f dB (floor %.1f dB)\n", hz, db, p.NoiseFloor())
	for _, b := range p.Bands() {
		fmt.Fprintf(w, "band %.1f Hz wide %.1f Hz, %.1f dB\n", b.Center, b.Width, b.DB)
	}
	// Images and LO leakage in a loopback show up as single-bin spurs.
	for _, s := range p.Spurs() {
		fmt.Fprintf(w, "spur %.1f Hz, %.1f dB\n", s.Center, s.DB)
	}
	return nil
}

type countReader struct {
	r io.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
