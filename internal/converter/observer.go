package converter

import (
	"strings"
	"time"

	"anim-converter/internal/encoder"
	"anim-converter/internal/logging"
)

// logObserver writes stage events to the request log.
type logObserver struct {
	log logging.RequestLogger
}

func (o logObserver) StageStarted(stage encoder.Stage, argv []string) {
	o.log.Debug("Starting %s stage: %s", stage.Name, strings.Join(argv, " "))
}

func (o logObserver) StageProgress(stage encoder.Stage, percent float64) {
	o.log.Debug("%s stage %.0f%%", stage.Name, percent)
}

func (o logObserver) StageFinished(stage encoder.Stage, elapsed time.Duration, err error) {
	if err != nil {
		o.log.Warn("%s stage failed after %v: %v", stage.Name, elapsed.Round(time.Millisecond), err)
		return
	}
	o.log.Debug("%s stage finished in %v", stage.Name, elapsed.Round(time.Millisecond))
}
