// Package permission turns forbidden backend responses into a single
// user-facing challenge. The triggering action is suspended until the
// challenge resolves and, unless configured otherwise, is not replayed.
package permission

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
)

var (
	// ErrChallengeResolved is returned after a successful challenge when the
	// action was not replayed; the caller may retry it.
	ErrChallengeResolved = errors.New("permission granted, action not replayed")
	// ErrDenied is returned when the user declines or fails the challenge.
	ErrDenied = errors.New("permission denied")
)

// Request describes the action that was refused.
type Request struct {
	Action string
	Err    error
}

// Challenger prompts for elevated credentials. Challenge blocks until the
// prompt is resolved and reports whether access was granted.
type Challenger interface {
	Challenge(ctx context.Context, req Request) (granted bool, err error)
}

// ChallengerFunc adapts a function to Challenger.
type ChallengerFunc func(ctx context.Context, req Request) (bool, error)

func (f ChallengerFunc) Challenge(ctx context.Context, req Request) (bool, error) {
	return f(ctx, req)
}

// DenyAll is a Challenger for non-interactive surfaces.
var DenyAll = ChallengerFunc(func(context.Context, Request) (bool, error) { return false, nil })

type Gate struct {
	challenger      Challenger
	replayOnSuccess bool
	log             logger.Logger
	group           singleflight.Group
}

type Option func(*Gate)

// WithReplay makes the gate run the action once more after a granted challenge.
func WithReplay(replay bool) Option {
	return func(g *Gate) { g.replayOnSuccess = replay }
}

func NewGate(challenger Challenger, log logger.Logger, opts ...Option) *Gate {
	if challenger == nil {
		challenger = DenyAll
	}
	g := &Gate{challenger: challenger, log: log.With("permission")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn. A forbidden result opens a challenge; concurrent forbidden
// results share one prompt.
func (g *Gate) Do(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, backend.ErrForbidden) {
		return err
	}

	granted, cerr := g.challenge(ctx, Request{Action: action, Err: err})
	if cerr != nil {
		return fmt.Errorf("permission challenge for %s failed: %w", action, cerr)
	}
	if !granted {
		g.log.Info("Permission denied for %s", action)
		return fmt.Errorf("%s: %w", action, ErrDenied)
	}
	if !g.replayOnSuccess {
		return fmt.Errorf("%s: %w", action, ErrChallengeResolved)
	}

	g.log.Info("Permission granted, replaying %s", action)
	return fn(ctx)
}

// Check reports a forbidden error observed outside Do (for example by a
// background poll) without suspending the caller beyond the challenge.
func (g *Gate) Check(ctx context.Context, action string, err error) (granted bool) {
	if !errors.Is(err, backend.ErrForbidden) {
		return false
	}
	granted, cerr := g.challenge(ctx, Request{Action: action, Err: err})
	if cerr != nil {
		g.log.Warn("Permission challenge for %s failed: %v", action, cerr)
		return false
	}
	return granted
}

func (g *Gate) challenge(ctx context.Context, req Request) (bool, error) {
	g.log.Warn("Forbidden: %s, opening challenge", req.Action)
	// all concurrent denials collapse into one prompt
	v, err, _ := g.group.Do("challenge", func() (any, error) {
		return g.challenger.Challenge(ctx, req)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
