package form

import (
	"context"
	"sync"

	"github.com/goliatone/go-formstate/pkg/validation"
)

// Pass is one issued whole-collection validation run. Passes are ordered by
// issuance: when a pass settles it is applied only if no newer pass has been
// issued in the meantime, otherwise it is discarded.
//
// A nil *Pass means no validation was scheduled; it reports as settled.
type Pass struct {
	seq    uint64
	reason string
	done   chan struct{}

	mu      sync.Mutex
	applied bool
	err     error
	outcome validation.Outcome
}

func newPass(seq uint64, reason string) *Pass {
	return &Pass{seq: seq, reason: reason, done: make(chan struct{})}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Seq returns the issuance sequence number.
func (p *Pass) Seq() uint64 {
	if p == nil {
		return 0
	}
	return p.seq
}

// Reason names what issued the pass (change, blur, insert, submit...).
func (p *Pass) Reason() string {
	if p == nil {
		return ""
	}
	return p.reason
}

// Done is closed once the pass has settled.
func (p *Pass) Done() <-chan struct{} {
	if p == nil {
		return closedDone
	}
	return p.done
}

// Pending reports whether the pass has not settled yet.
func (p *Pass) Pending() bool {
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the pass settles or ctx is done.
func (p *Pass) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Applied reports whether the settled pass updated the error map. It is
// false for discarded passes, failed passes and passes still pending.
func (p *Pass) Applied() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

// Err returns the validator failure, if any. Validation issues are not
// errors; they live in the engine's error map.
func (p *Pass) Err() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Outcome returns the translated result the pass produced.
func (p *Pass) Outcome() validation.Outcome {
	if p == nil {
		return validation.Outcome{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

func (p *Pass) settle(outcome validation.Outcome, applied bool, err error) {
	p.mu.Lock()
	p.outcome = outcome
	p.applied = applied
	p.err = err
	p.mu.Unlock()
	close(p.done)
}
