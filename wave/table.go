// Package wave holds precomputed single-cycle waveforms for the transmitter.
package wave

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultTableLen is the table length used by New.
const DefaultTableLen = 8192

var ErrUnknownWaveform = errors.New("unknown waveform type")

type Kind int

const (
	Const Kind = iota
	Sine
	Square
	Ramp
)

func (k Kind) String() string {
	switch k {
	case Const:
		return "CONST"
	case Sine:
		return "SINE"
	case Square:
		return "SQUARE"
	case Ramp:
		return "RAMP"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONST":
		return Const, nil
	case "SINE":
		return Sine, nil
	case "SQUARE":
		return Square, nil
	case "RAMP":
		return Ramp, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWaveform, s)
}

// Table is an immutable complex lookup table for one waveform period.
// The Q component is the I component delayed by a quarter period.
type Table struct {
	samples []complex64
}

func New(kind Kind, ampl float32) (*Table, error) {
	return NewWithLen(kind, ampl, DefaultTableLen)
}

func NewWithLen(kind Kind, ampl float32, n int) (*Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bad table length %d", n)
	}
	re := make([]float64, n)
	for i := range re {
		switch kind {
		case Const:
			re[i] = 1.0
		case Sine:
			re[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
		case Square:
			if i >= n/2 {
				re[i] = 1.0
			}
		case Ramp:
			if n > 1 {
				re[i] = 2.0*float64(i)/float64(n-1) - 1.0
			}
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnknownWaveform, kind)
		}
	}
	t := &Table{samples: make([]complex64, n)}
	for i := range t.samples {
		q := (i + (3*n)/4) % n
		t.samples[i] = complex(ampl*float32(re[i]), ampl*float32(re[q]))
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.samples) }

// At returns the sample at index modulo the table length.
func (t *Table) At(index uint) complex64 {
	return t.samples[index%uint(len(t.samples))]
}
