package txrx

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// WithInterrupt returns a context that is cancelled the first time the
// process receives one of sigs (SIGINT and SIGTERM when none are given).
// The workers poll it once per iteration; it is the only stop signal they
// observe. A second signal falls through to the default handler.
func WithInterrupt(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, sigs...)
	go stopOnSignal(ctx, sigc, func() { signal.Stop(sigc) }, cancel)
	return ctx, cancel
}

// stopOnSignal calls release before cancel so the handler is gone by the
// time anything observes the cancellation.
func stopOnSignal(ctx context.Context, sigc <-chan os.Signal, release func(), cancel context.CancelFunc) {
	select {
	case sig := <-sigc:
		release()
		log.Printf("received %v, stopping", sig)
		cancel()
	case <-ctx.Done():
		release()
	}
}
