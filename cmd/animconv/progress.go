package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"anim-converter/internal/encoder"
)

// progressPrinter reports stage progress. On a terminal it redraws one line
// per stage with carriage returns; otherwise it prints start and finish only.
type progressPrinter struct {
	w   io.Writer
	tty bool

	mu   sync.Mutex
	last int
}

func (p *progressPrinter) StageStarted(stage encoder.Stage, _ []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = -1
	if !p.tty {
		fmt.Fprintf(p.w, "%s: started\n", stage.Name)
	}
}

func (p *progressPrinter) StageProgress(stage encoder.Stage, percent float64) {
	if !p.tty {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pct := int(percent)
	if pct == p.last {
		return
	}
	p.last = pct
	fmt.Fprintf(p.w, "\r%s: %3d%%", stage.Name, pct)
}

func (p *progressPrinter) StageFinished(stage encoder.Stage, elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "done"
	if err != nil {
		status = "failed"
	}

	if p.tty {
		// Clear the progress line
		fmt.Fprintf(p.w, "\r\033[K")
	}
	fmt.Fprintf(p.w, "%s: %s in %v\n", stage.Name, status, elapsed.Round(time.Millisecond))
}
