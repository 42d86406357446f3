// Package scheduler fires the workflow on a fixed interval.
//
// One goroutine owns the ticker and calls the runner synchronously, so a slow
// run causes intermediate ticks to be dropped instead of stacked. Stopping the
// scheduler never interrupts a run that has already started; Stop waits for it.
package scheduler
