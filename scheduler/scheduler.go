// Package scheduler runs the periodic "close what is due" sweeps. Every
// job fires once at boot and then on its interval, so a bot that was down
// over a deadline catches up as soon as it restarts.
package scheduler

import (
	"time"

	"github.com/eclipsabot/eclipsa/api/logger"
	"github.com/eclipsabot/eclipsa/metrics"
)

// Schedule starts a job on its own goroutine. Job errors are logged and
// the ticker keeps going.
func Schedule(name string, interval time.Duration, job func() error) {
	go func() {
		run(name, job)

		timer := time.NewTicker(interval)
		for range timer.C {
			run(name, job)
		}
	}()
}

func run(name string, job func() error) {
	logger.Debug().Printf("Running job %s", name)
	metrics.SchedulerRuns.WithLabelValues(name).Inc()

	err := job()
	if err != nil {
		logger.Err().Printf("Job %s failed: %s", name, err.Error())
	}
}
