package encoder

import (
	"context"
	"errors"
	"time"
)

// Observer receives per-stage lifecycle events. StageStarted carries the
// fully resolved argv for diagnostics; StageProgress is only called when the
// stage has a known duration; StageFinished is called exactly once per
// started stage with a nil error on success.
type Observer interface {
	StageStarted(stage Stage, argv []string)
	StageProgress(stage Stage, percent float64)
	StageFinished(stage Stage, elapsed time.Duration, err error)
}

// Observers fans events out to several observers in order.
type Observers []Observer

// StageStarted implements Observer.
func (o Observers) StageStarted(stage Stage, argv []string) {
	for _, obs := range o {
		obs.StageStarted(stage, argv)
	}
}

// StageProgress implements Observer.
func (o Observers) StageProgress(stage Stage, percent float64) {
	for _, obs := range o {
		obs.StageProgress(stage, percent)
	}
}

// StageFinished implements Observer.
func (o Observers) StageFinished(stage Stage, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.StageFinished(stage, elapsed, err)
	}
}

// Execute runs the plan's stages strictly in order and stops at the first
// failure; later stages are never started. The returned error is always a
// *StageError when non-nil.
func Execute(ctx context.Context, runner Runner, plan Plan, obs Observer) error {
	if obs == nil {
		obs = Observers(nil)
	}

	for _, stage := range plan.Stages {
		obs.StageStarted(stage, runner.Command(stage))

		start := time.Now()
		err := runner.Run(ctx, stage, func(pct float64) {
			obs.StageProgress(stage, pct)
		})
		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				err = &StageError{Stage: stage.Name, Err: err}
			}
		}
		obs.StageFinished(stage, time.Since(start), err)

		if err != nil {
			return err
		}
	}

	return nil
}
