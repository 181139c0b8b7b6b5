package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Action func(ctx context.Context, target Entity) error

type Batch struct {
	Name     string
	Actor    Entity
	Executor Entity
	Targets  []Entity
	// MaxBatch <= 0 leaves the batch size unbounded.
	MaxBatch int
	// Gate defaults to CanActOn.
	Gate  func(actor, target, executor Entity) Decision
	Apply Action
}

type Failure struct {
	TargetID string
	Err      error
}

type Result struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

func (r Result) Failed() int { return len(r.Failures) }

// Summary renders the one line reply for a batch, e.g. "Successfully kicked **2/3** members.".
// detail is inserted before the final period.
func (r Result) Summary(verb, detail string) string {
	if r.Failed() == 0 {
		return fmt.Sprintf("Successfully %s **%d** members%s.", verb, r.Attempted, detail)
	}
	return fmt.Sprintf("Successfully %s **%d/%d** members%s.", verb, r.Succeeded, r.Attempted, detail)
}

// FailureLines lists why targets were skipped, one per line.
func (r Result) FailureLines() string {
	if len(r.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	for _, failure := range r.Failures {
		fmt.Fprintf(&b, "\n<@%s> - %s", failure.TargetID, Describe(failure.Err))
	}
	return b.String()
}

// Executor applies one action per target, strictly in order.
type Executor struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewExecutor paces remote mutations to perSecond; perSecond <= 0 disables pacing.
func NewExecutor(perSecond float64, logger *zap.Logger) *Executor {
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Executor{limiter: limiter, logger: logger}
}

func (e *Executor) Run(ctx context.Context, b Batch) (Result, error) {
	if len(b.Targets) == 0 {
		return Result{}, ErrNothingToDo
	}
	if b.MaxBatch > 0 && len(b.Targets) > b.MaxBatch {
		return Result{}, &BatchTooLargeError{Size: len(b.Targets), Max: b.MaxBatch}
	}
	gate := b.Gate
	if gate == nil {
		gate = CanActOn
	}

	var result Result
	for _, target := range b.Targets {
		result.Attempted++

		decision := gate(b.Actor, target, b.Executor)
		if !decision.Allowed {
			result.Failures = append(result.Failures, Failure{TargetID: target.ID, Err: &DeniedError{TargetID: target.ID, Cause: decision.Cause}})
			continue
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				result.Failures = append(result.Failures, Failure{TargetID: target.ID, Err: err})
				continue
			}
		}

		if err := b.Apply(ctx, target); err != nil {
			err = ClassifyRemote(err)
			e.logger.Debug("bulk action failed", zap.String("action", b.Name), zap.String("target_id", target.ID), zap.Error(err))
			result.Failures = append(result.Failures, Failure{TargetID: target.ID, Err: err})
			continue
		}
		result.Succeeded++
	}
	return result, nil
}

// runOne applies a single-target action under the hierarchy gate and pacing of the executor.
// The target's failure, if any, is returned as the error.
func (s *Service) runOne(ctx context.Context, inv Invocation, name string, target Member, apply Action) error {
	result, err := s.bulk.Run(ctx, Batch{
		Name:     name,
		Actor:    inv.Actor.Entity,
		Executor: inv.Executor.Entity,
		Targets:  []Entity{target.Entity},
		Apply:    apply,
	})
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return result.Failures[0].Err
	}
	return nil
}

// deniedCause reports why the hierarchy gate refused a target, or CauseNone.
func deniedCause(err error) DenyCause {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Cause
	}
	return CauseNone
}

// AllowAll skips the hierarchy gate, for targets that are not guild members such as bans.
func AllowAll(_, _, _ Entity) Decision { return Decision{Allowed: true} }
