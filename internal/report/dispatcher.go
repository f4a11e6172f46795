package report

import (
	"context"
	"log"
	"sync"
)

// Dispatcher runs the consolidation pipeline detached from the submitting
// request. Submit returns before any work happens; duplicate submissions for
// the same case each run independently and failures surface only in the log.
type Dispatcher struct {
	Pipeline *Pipeline
	Logger   *log.Logger

	wg sync.WaitGroup
}

func NewDispatcher(p *Pipeline, logger *log.Logger) *Dispatcher {
	return &Dispatcher{Pipeline: p, Logger: logger}
}

func (d *Dispatcher) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// Submit schedules one pipeline run for the case and returns immediately.
// The run is bound to the background context, not the caller's: an aborted
// request must not cancel a consolidation already accepted.
func (d *Dispatcher) Submit(caseID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger().Printf("report pipeline panic for case %s: %v", caseID, r)
			}
		}()
		if err := d.Pipeline.Run(context.Background(), caseID); err != nil {
			d.logger().Printf("report pipeline failed for case %s: %v", caseID, err)
		}
	}()
}

// Wait blocks until every submitted run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
