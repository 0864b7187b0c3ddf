package txrx

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/store"
)

type sendRecord struct {
	nsamps int
	md     radio.TxMetadata
	buffs  [][]complex64
}

// fakeTx records sends. It calls cancel after cancelAfter sends and fails
// the failAt-th send when set.
type fakeTx struct {
	sends       []sendRecord
	cancelAfter int
	cancel      context.CancelFunc
	failAt      int
}

func (f *fakeTx) MaxNumSamps() int { return 100 }

func (f *fakeTx) Send(buffs [][]complex64, nsamps int, md radio.TxMetadata, timeout time.Duration) (int, error) {
	f.sends = append(f.sends, sendRecord{nsamps: nsamps, md: md, buffs: buffs})
	if f.failAt > 0 && len(f.sends) == f.failAt {
		return 0, errors.New("underflow")
	}
	if f.cancel != nil && len(f.sends) == f.cancelAfter {
		f.cancel()
	}
	return nsamps, nil
}

type rxStep struct {
	n    int
	code radio.ErrorCode
	msg  string
}

// fakeRx replays script; once exhausted it delivers every sample asked for.
type fakeRx struct {
	mu       sync.Mutex
	script   []rxStep
	cmds     []radio.StreamCmd
	timeouts []time.Duration
	calls    int
	// size is the sample size of the stream format.
	size int
	// delay is slept on every Recv.
	delay time.Duration
}

func (f *fakeRx) MaxNumSamps() int { return 100 }

func (f *fakeRx) IssueStreamCmd(cmd radio.StreamCmd) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeRx) Recv(buffs [][]byte, nsamps int, timeout time.Duration) (int, radio.RxMetadata) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, timeout)
	f.calls++
	step := rxStep{n: nsamps}
	if len(f.script) > 0 {
		step, f.script = f.script[0], f.script[1:]
	}
	if step.n > nsamps {
		step.n = nsamps
	}
	if step.code != radio.ErrorCodeNone {
		return 0, radio.RxMetadata{ErrorCode: step.code, Message: step.msg}
	}
	for ch, b := range buffs {
		for i := 0; i < step.n*f.size; i++ {
			b[i] = byte(ch + 1)
		}
	}
	return step.n, radio.RxMetadata{}
}

func (f *fakeRx) Cmds() []radio.StreamCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]radio.StreamCmd(nil), f.cmds...)
}

type memSink struct {
	bytes.Buffer
	name   string
	closed bool
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

func memSinks(n int) (store.SinkSet, []*memSink) {
	ss := make(store.SinkSet, n)
	ms := make([]*memSink, n)
	for i := range ms {
		ms[i] = &memSink{name: store.OutFilename("mem.dat", n, i)}
		ss[i] = ms[i]
	}
	return ss, ms
}
