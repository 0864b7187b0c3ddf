// Package spectrum estimates the power spectrum of recorded IQ samples.
package spectrum

import (
	"io"
	"math"
	"math/cmplx"
	"sort"

	"github.com/runningwild/go-fftw/fftw32"
)

// Band is a frequency range in Hz relative to the capture's center.
type Band struct {
	Center float64
	Width  float64
	// DB is the band's average power above the spread.
	DB float64
}

// Power accumulates per-bin dB statistics over a number of FFTs. Bins are
// ordered from -rate/2 to rate/2.
type Power struct {
	avg     []float64
	med     []float64
	fftBins *fftw32.Array
	ffts    int
	rate    float64
}

func NewPower(rate float64, bins, ffts int) *Power {
	return &Power{
		fftBins: fftw32.NewArray(bins),
		ffts:    ffts,
		rate:    rate,
	}
}

func (p *Power) Bins() int { return len(p.fftBins.Elems) }

func (p *Power) NoiseFloor() float64 {
	med := make([]float64, len(p.med))
	copy(med, p.med)
	sort.Float64s(med)
	return med[len(med)/2]
}

func (p *Power) Spread() float64 {
	med := make([]float64, len(p.avg))
	copy(med, p.avg)
	sort.Float64s(med)
	return med[len(med)/2]
}

func (p *Power) Stddev() float64 {
	spr, sdev := p.Spread(), 0.0
	for _, v := range p.avg {
		sdev += (v - spr) * (v - spr)
	}
	sdev /= float64(len(p.avg) - 1)
	return math.Sqrt(sdev)
}

func (p *Power) binHz() float64 { return p.rate / float64(p.Bins()) }

// BinFreq is the center frequency of bin i.
func (p *Power) BinFreq(i int) float64 {
	return float64(i-p.Bins()/2) * p.binHz()
}

// Peak returns the strongest bin's frequency and average power.
func (p *Power) Peak() (hz, db float64) {
	best := 0
	for i, v := range p.avg {
		if v > p.avg[best] {
			best = i
		}
	}
	return p.BinFreq(best), p.avg[best]
}

// Spurs finds single bins standing well above both neighbors.
func (p *Power) Spurs() (ret []Band) {
	spr, sdev := p.Spread(), p.Stddev()
	for i := 1; i < len(p.avg)-1; i++ {
		left, mid, right := p.avg[i-1]-spr, p.avg[i]-spr, p.avg[i+1]-spr
		if mid < 0 {
			continue
		}
		if mid-left > 2.0*sdev && mid-right > 2.0*sdev {
			ret = append(ret, p.band(i, 1, mid))
		}
	}
	return ret
}

// Bands finds runs of bins above the spread.
func (p *Power) Bands() (ret []Band) {
	spr, sdev := p.Spread(), p.Stddev()
	begin, end := -1, -1
	db := 0.0
	for i, avg := range p.avg {
		if avg-spr >= 1.5*sdev {
			if begin == -1 {
				if i == 0 || p.avg[i-1]-spr > (avg-spr)/2.0 {
					continue
				}
				begin = i
			}
			end = i
			db += avg - spr
		} else if begin != -1 {
			n := end - begin + 1
			ret = append(ret, p.band(begin, n, db/float64(n)))
			begin, db = -1, 0
		}
	}
	if begin != -1 {
		n := end - begin + 1
		ret = append(ret, p.band(begin, n, db/float64(n)))
	}
	return ret
}

func (p *Power) band(begin, bins int, db float64) Band {
	bw := float64(bins) * p.binHz()
	return Band{Center: p.BinFreq(begin) - p.binHz()/2 + bw/2, Width: bw, DB: db}
}

// Measure runs one FFT per batch read from ch. Batches must hold exactly
// Bins samples. It returns io.EOF if ch closes before enough batches.
func (p *Power) Measure(ch <-chan []complex64) error {
	bins := p.Bins()
	p.avg = make([]float64, bins)
	p.med = make([]float64, bins)
	meds := make([][]float64, bins)
	medSamples := 10
	if medSamples > p.ffts {
		medSamples = p.ffts
	}
	for i := range meds {
		meds[i] = make([]float64, medSamples)
	}
	arr := &fftw32.Array{}
	for n := 0; n < p.ffts; n++ {
		samps, ok := <-ch
		if !ok {
			return io.EOF
		}
		arr.Elems = samps
		p.fftBins = fftw32.FFT(arr)
		for i, v := range p.fftBins.Elems {
			idx := i + bins/2
			if i >= bins/2 {
				idx = i - bins/2
			}
			db := 20 * math.Log10(cmplx.Abs(complex128(v)))
			p.avg[idx] += db / float64(p.ffts)
			meds[idx][((len(meds[idx])-1)*n)/p.ffts] = db
		}
	}
	for i := range p.med {
		sort.Float64s(meds[i])
		p.med[i] = meds[i][len(meds[i])/2]
	}
	return nil
}
