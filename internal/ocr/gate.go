package ocr

import "context"

// gate serializes calls into an engine that is not safe for concurrent
// use. Unlike a mutex, a caller waiting to enter gives up as soon as its
// context ends, so calls queued behind a hung recognition fail fast
// instead of piling up.
type gate chan struct{}

func newGate() gate { return make(gate, 1) }

// enter blocks until the gate is free or ctx is done.
func (g gate) enter(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		if err := ctx.Err(); err != nil {
			<-g
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g gate) leave() { <-g }
