package txrx

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/store"
)

func newTestReceiver(t *testing.T, frx *fakeRx, nchans int, nreq uint64) (*Receiver, *bytes.Buffer) {
	chans := make([]int, nchans)
	for i := range chans {
		chans[i] = i
	}
	frx.size = radio.SC16.Size()
	r, err := NewReceiver(frx, RxConfig{
		Format:           radio.SC16,
		Channels:         chans,
		NumRequested:     nreq,
		Settling:         200 * time.Millisecond,
		SamplesPerBuffer: 100,
		Rate:             1e6,
	})
	if err != nil {
		t.Fatal(err)
	}
	var logbuf bytes.Buffer
	r.Log = log.New(&logbuf, "", 0)
	return r, &logbuf
}

func TestReceiveRequestedCount(t *testing.T) {
	frx := &fakeRx{script: []rxStep{{n: 30}, {n: 100}, {n: 7}}}
	r, _ := newTestReceiver(t, frx, 2, 250)
	sinks, ms := memSinks(2)
	stats, err := r.Run(context.Background(), sinks)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Samples != 250 {
		t.Fatalf("got %d samples, want 250", stats.Samples)
	}
	for i, m := range ms {
		if m.Len() != 250*4 {
			t.Fatalf("sink %d has %d bytes, want %d", i, m.Len(), 250*4)
		}
		if !m.closed {
			t.Fatalf("sink %d not closed", i)
		}
		// Each sink only sees its own channel.
		if bytes.Count(m.Bytes(), []byte{byte(i + 1)}) != m.Len() {
			t.Fatalf("sink %d has another channel's samples", i)
		}
	}
	cmds := frx.Cmds()
	if len(cmds) != 2 {
		t.Fatalf("expected start and stop commands, got %+v", cmds)
	}
	if cmds[0].Mode != radio.NumSampsAndDone || cmds[0].NumSamps != 250 || cmds[0].TimeSpec != 200*time.Millisecond {
		t.Fatalf("bad start command %+v", cmds[0])
	}
	if cmds[1].Mode != radio.StopContinuous {
		t.Fatalf("bad stop command %+v", cmds[1])
	}
}

func TestReceiveTimeouts(t *testing.T) {
	frx := &fakeRx{}
	r, _ := newTestReceiver(t, frx, 1, 300)
	sinks, _ := memSinks(1)
	if _, err := r.Run(context.Background(), sinks); err != nil {
		t.Fatal(err)
	}
	if len(frx.timeouts) != 3 {
		t.Fatalf("expected 3 receives, got %d", len(frx.timeouts))
	}
	if frx.timeouts[0] != 300*time.Millisecond {
		t.Fatalf("first timeout %v, want settling plus 100ms", frx.timeouts[0])
	}
	for _, to := range frx.timeouts[1:] {
		if to != rxTimeout {
			t.Fatalf("later timeout %v, want %v", to, rxTimeout)
		}
	}
}

func TestReceiveTimeoutEndsRun(t *testing.T) {
	frx := &fakeRx{script: []rxStep{{n: 100}, {code: radio.ErrorCodeTimeout}, {n: 100}}}
	r, logbuf := newTestReceiver(t, frx, 1, 0)
	sinks, ms := memSinks(1)
	stats, err := r.Run(context.Background(), sinks)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.TimedOut || stats.Samples != 100 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if frx.calls != 2 {
		t.Fatalf("expected no receive after the timeout, got %d calls", frx.calls)
	}
	if !strings.Contains(logbuf.String(), "Timeout while streaming") {
		t.Fatalf("missing timeout message: %q", logbuf.String())
	}
	if !ms[0].closed || ms[0].Len() != 400 {
		t.Fatalf("sink closed=%v len=%d", ms[0].closed, ms[0].Len())
	}
	cmds := frx.Cmds()
	if len(cmds) != 2 || cmds[0].Mode != radio.StartContinuous || cmds[1].Mode != radio.StopContinuous {
		t.Fatalf("bad commands %+v", cmds)
	}
}

func TestReceiveOverflowReportedOnce(t *testing.T) {
	frx := &fakeRx{script: []rxStep{
		{n: 50},
		{code: radio.ErrorCodeOverflow},
		{n: 50},
		{code: radio.ErrorCodeOverflow},
		{code: radio.ErrorCodeOverflow},
	}}
	r, logbuf := newTestReceiver(t, frx, 1, 200)
	sinks, ms := memSinks(1)
	stats, err := r.Run(context.Background(), sinks)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Overflows != 3 {
		t.Fatalf("got %d overflows, want 3", stats.Overflows)
	}
	if n := strings.Count(logbuf.String(), "overflow indication"); n != 1 {
		t.Fatalf("overflow message logged %d times", n)
	}
	if !strings.Contains(logbuf.String(), "4.000000MB/s") {
		t.Fatalf("missing write rate: %q", logbuf.String())
	}
	// Dropped samples are not written; the count is still met.
	if stats.Samples != 200 || ms[0].Len() != 200*4 {
		t.Fatalf("samples %d, bytes %d", stats.Samples, ms[0].Len())
	}
}

func TestReceiveFatalError(t *testing.T) {
	frx := &fakeRx{script: []rxStep{{n: 10}, {code: radio.ErrorCodeBadPacket, msg: "bad header"}}}
	r, _ := newTestReceiver(t, frx, 2, 0)
	sinks, ms := memSinks(2)
	_, err := r.Run(context.Background(), sinks)
	var rerr *ReceiverError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ReceiverError, got %v", err)
	}
	if rerr.Code != radio.ErrorCodeBadPacket {
		t.Fatalf("code %v", rerr.Code)
	}
	if !strings.HasPrefix(err.Error(), "Receiver error ") || !strings.Contains(err.Error(), "bad header") {
		t.Fatalf("message %q", err.Error())
	}
	for i, m := range ms {
		if !m.closed || m.Len() != 40 {
			t.Fatalf("sink %d closed=%v len=%d", i, m.closed, m.Len())
		}
	}
	if cmds := frx.Cmds(); len(cmds) != 2 || cmds[1].Mode != radio.StopContinuous {
		t.Fatalf("stream not stopped: %+v", cmds)
	}
}

func TestReceiveCancel(t *testing.T) {
	frx := &fakeRx{delay: time.Millisecond}
	r, _ := newTestReceiver(t, frx, 1, 0)
	sinks, ms := memSinks(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, sinks)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop after cancel")
	}
	if !ms[0].closed || ms[0].Len() == 0 {
		t.Fatalf("sink closed=%v len=%d", ms[0].closed, ms[0].Len())
	}
	cmds := frx.Cmds()
	if cmds[len(cmds)-1].Mode != radio.StopContinuous {
		t.Fatalf("stream not stopped: %+v", cmds)
	}
}

func TestReceiveSinkMismatch(t *testing.T) {
	frx := &fakeRx{}
	r, _ := newTestReceiver(t, frx, 2, 10)
	sinks, ms := memSinks(1)
	if _, err := r.Run(context.Background(), sinks); !errors.Is(err, store.ErrSinkMismatch) {
		t.Fatalf("expected ErrSinkMismatch, got %v", err)
	}
	if len(frx.Cmds()) != 0 {
		t.Fatal("stream started with mismatched sinks")
	}
	if !ms[0].closed {
		t.Fatal("sink left open")
	}
}
