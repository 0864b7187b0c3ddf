package radio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

var ErrUnknownFormat = errors.New("unknown sample format")

// Format is the host-side numeric representation of one complex sample.
// All formats are little-endian interleaved I/Q.
type Format int

const (
	FC64 Format = iota
	FC32
	SC16
)

func (f Format) String() string {
	switch f {
	case FC64:
		return "fc64"
	case FC32:
		return "fc32"
	case SC16:
		return "sc16"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Size is the number of bytes per complex sample.
func (f Format) Size() int {
	switch f {
	case FC64:
		return 16
	case FC32:
		return 8
	case SC16:
		return 4
	}
	return 0
}

// ParseFormat accepts both host type names (double, float, short) and
// stream format names (fc64, fc32, sc16).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "double", "fc64":
		return FC64, nil
	case "float", "fc32":
		return FC32, nil
	case "short", "sc16":
		return SC16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Put encodes v as the i-th sample of buf. Fixed point samples are scaled
// so that 1.0 maps to full scale.
func (f Format) Put(buf []byte, i int, v complex128) {
	switch f {
	case FC64:
		b := buf[16*i:]
		binary.LittleEndian.PutUint64(b, math.Float64bits(real(v)))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(imag(v)))
	case FC32:
		b := buf[8*i:]
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(imag(v))))
	case SC16:
		b := buf[4*i:]
		binary.LittleEndian.PutUint16(b, uint16(toShort(real(v))))
		binary.LittleEndian.PutUint16(b[2:], uint16(toShort(imag(v))))
	}
}

// At decodes the i-th sample of buf.
func (f Format) At(buf []byte, i int) complex128 {
	switch f {
	case FC64:
		b := buf[16*i:]
		return complex(
			math.Float64frombits(binary.LittleEndian.Uint64(b)),
			math.Float64frombits(binary.LittleEndian.Uint64(b[8:])))
	case FC32:
		b := buf[8*i:]
		return complex(
			float64(math.Float32frombits(binary.LittleEndian.Uint32(b))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))))
	case SC16:
		b := buf[4*i:]
		return complex(
			float64(int16(binary.LittleEndian.Uint16(b)))/math.MaxInt16,
			float64(int16(binary.LittleEndian.Uint16(b[2:])))/math.MaxInt16)
	}
	return 0
}

func toShort(v float64) int16 {
	v = math.Round(v * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	} else if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// IQReader streams recorded samples of a given format.
type IQReader struct {
	r      io.Reader
	format Format
	err    error
}

func NewIQReader(r io.Reader, f Format) *IQReader {
	if r == nil {
		panic("nil reader")
	}
	return &IQReader{r: r, format: f}
}

func (iq *IQReader) Err() error { return iq.err }

func (iq *IQReader) Batch64(batch, limit int) <-chan []complex64 {
	return iq.BatchStream64(context.Background(), batch, limit)
}

// BatchStream64 emits batches of batch samples until the reader runs dry,
// limit batches were sent (0 for no limit), or ctx is done. A short final
// batch is dropped.
func (iq *IQReader) BatchStream64(ctx context.Context, batch, limit int) <-chan []complex64 {
	ch := make(chan []complex64, 1)
	go func() {
		defer close(ch)
		buf := make([]byte, batch*iq.format.Size())
		for i := 0; limit <= 0 || i < limit; i++ {
			if _, iq.err = io.ReadFull(iq.r, buf); iq.err != nil {
				return
			}
			samps := make([]complex64, batch)
			for j := range samps {
				samps[j] = complex64(iq.format.At(buf, j))
			}
			select {
			case ch <- samps:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// u8 I/Q as produced by rtl_tcp.
func u8ToComplex(i, q byte) complex128 {
	return complex((float64(i)-127)/128.0, (float64(q)-127)/128.0)
}
