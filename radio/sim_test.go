package radio

import (
	"context"
	"math"
	"math/cmplx"
	"testing"
	"time"
)

func openSim(t *testing.T, args string) Device {
	dev, err := Open(context.TODO(), args)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestSimRecvTone(t *testing.T) {
	dev := openSim(t, "type=sim,rx_channels=2,tone=1e3")
	rx, err := dev.RxStream(StreamArgs{Format: FC64, Channels: []int{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	cmd := StreamCmd{Mode: NumSampsAndDone, NumSamps: 500, StreamNow: true}
	if err := rx.IssueStreamCmd(cmd); err != nil {
		t.Fatal(err)
	}
	buffs := [][]byte{make([]byte, 1000*16), make([]byte, 1000*16)}
	n, md := rx.Recv(buffs, 1000, 100*time.Millisecond)
	if md.ErrorCode != ErrorCodeNone {
		t.Fatal(md.Strerror())
	}
	if n != 500 {
		t.Fatalf("got %d samples, want 500", n)
	}
	for i := 0; i < n; i++ {
		a, b := FC64.At(buffs[0], i), FC64.At(buffs[1], i)
		if math.Abs(cmplx.Abs(a)-0.5) > 1e-9 {
			t.Fatalf("sample %d magnitude %g", i, cmplx.Abs(a))
		}
		// Channels differ by a fixed phase.
		if d := cmplx.Phase(b / a); math.Abs(d-math.Pi/4) > 1e-9 {
			t.Fatalf("sample %d phase offset %g", i, d)
		}
	}
	// Everything asked for was delivered.
	if _, md := rx.Recv(buffs, 1000, 10*time.Millisecond); md.ErrorCode != ErrorCodeTimeout {
		t.Fatalf("expected timeout after burst, got %v", md.ErrorCode)
	}
}

func TestSimRecvNotStreaming(t *testing.T) {
	dev := openSim(t, "type=sim")
	rx, err := dev.RxStream(StreamArgs{Format: SC16, Channels: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	buffs := [][]byte{make([]byte, 100*4)}
	if _, md := rx.Recv(buffs, 100, 10*time.Millisecond); md.ErrorCode != ErrorCodeTimeout {
		t.Fatalf("expected timeout, got %v", md.ErrorCode)
	}
}

func TestSimOverflow(t *testing.T) {
	dev := openSim(t, "type=sim,overflow_every=2")
	rx, err := dev.RxStream(StreamArgs{Format: FC32, Channels: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	if err := rx.IssueStreamCmd(StreamCmd{Mode: StartContinuous, StreamNow: true}); err != nil {
		t.Fatal(err)
	}
	buffs := [][]byte{make([]byte, 100*8)}
	var codes []ErrorCode
	for i := 0; i < 4; i++ {
		_, md := rx.Recv(buffs, 100, 100*time.Millisecond)
		codes = append(codes, md.ErrorCode)
	}
	want := []ErrorCode{ErrorCodeNone, ErrorCodeOverflow, ErrorCodeNone, ErrorCodeOverflow}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes %v, want %v", codes, want)
		}
	}
	if err := rx.IssueStreamCmd(StreamCmd{Mode: StopContinuous}); err != nil {
		t.Fatal(err)
	}
	if _, md := rx.Recv(buffs, 100, 10*time.Millisecond); md.ErrorCode != ErrorCodeTimeout {
		t.Fatalf("expected timeout after stop, got %v", md.ErrorCode)
	}
}

func TestSimChannels(t *testing.T) {
	dev := openSim(t, "type=sim,tx_channels=2")
	if dev.NumChannels(TX) != 2 || dev.NumChannels(RX) != 1 {
		t.Fatalf("channels tx %d rx %d", dev.NumChannels(TX), dev.NumChannels(RX))
	}
	if _, err := dev.RxStream(StreamArgs{Format: FC32, Channels: []int{1}}); err == nil {
		t.Fatal("expected bad rx channel to fail")
	}
	if _, err := dev.TxStream(StreamArgs{Format: FC32}); err == nil {
		t.Fatal("expected empty channel list to fail")
	}
	if err := dev.SetSampleRate(RX, 1e9); err == nil {
		t.Fatal("expected bad rate to fail")
	}
	if _, ok := dev.(Tuner); !ok {
		t.Fatal("sim device should tune")
	}
}

func TestSimSendPacing(t *testing.T) {
	dev := openSim(t, "type=sim")
	tx, err := dev.TxStream(StreamArgs{Format: FC32, Channels: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]complex64, 1000)
	buffs := [][]complex64{buf}
	// A burst scheduled in the future cannot be accepted within the timeout.
	md := TxMetadata{StartOfBurst: true, HasTimeSpec: true, TimeSpec: time.Hour}
	if n, err := tx.Send(buffs, len(buf), md, 10*time.Millisecond); err != nil || n != 0 {
		t.Fatalf("scheduled send returned %d, %v", n, err)
	}
	dev.SetTimeNow(time.Hour)
	if n, err := tx.Send(buffs, len(buf), TxMetadata{}, 100*time.Millisecond); err != nil || n != len(buf) {
		t.Fatalf("send returned %d, %v", n, err)
	}
	if n, err := tx.Send(buffs, 0, TxMetadata{EndOfBurst: true}, 100*time.Millisecond); err != nil || n != 0 {
		t.Fatalf("end of burst returned %d, %v", n, err)
	}
}
