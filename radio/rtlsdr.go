package radio

import (
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/kr/pty"
)

// newRTLSDR starts rtl_tcp for the dongle with the given serial or index
// and connects to it.
func newRTLSDR(ctx context.Context, ser, addr string, ppm int) (*rtlDevice, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	// The server outlives ctx; Close stops it once streaming has wound down.
	cmd := exec.Command("rtl_tcp", "-a", host, "-p", port, "-d", ser)
	fpty, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	go io.Copy(os.Stderr, fpty)
	stop := func() error {
		cmd.Process.Kill()
		fpty.Close()
		cmd.Wait()
		return nil
	}
	// TODO: wait for "listening..." on the pty instead of a fixed delay.
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		stop()
		return nil, ctx.Err()
	}
	d, err := newRTLTCPDevice(ctx, addr, ppm)
	if err != nil {
		stop()
		return nil, err
	}
	d.onClose = stop
	return d, nil
}
