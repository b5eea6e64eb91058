// Package broadcast fans a single message out to many recipients.
//
// Every recipient produces exactly one Outcome: a failure never aborts the
// run and nothing is retried, so a Tally always satisfies
// Sent+Failed == Total.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SendFunc func(ctx context.Context, userID int64) error

type Job struct {
	ID         string
	Recipients []int64
	Send       SendFunc
}

func NewJob(recipients []int64, send SendFunc) Job {
	return Job{ID: uuid.NewString(), Recipients: recipients, Send: send}
}

type Outcome struct {
	UserID int64
	Err    error
}

type Result struct {
	JobID  string
	Sent   int
	Failed int
	Total  int
}

type Runner struct {
	// Interval is the minimum gap between two sends across all workers.
	Interval time.Duration
	Workers  int
	log      *zap.Logger
}

func NewRunner(interval time.Duration, workers int, log *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{Interval: interval, Workers: workers, log: log}
}

// Run starts the workers and returns the outcome stream, closed once every
// recipient has been attempted. Recipients not attempted because ctx ended
// are reported with ctx's error.
func (r *Runner) Run(ctx context.Context, job Job) <-chan Outcome {
	queue := make(chan int64, len(job.Recipients))
	for _, id := range job.Recipients {
		queue <- id
	}
	close(queue)

	out := make(chan Outcome, len(job.Recipients))

	limit := rate.Inf
	if r.Interval > 0 {
		limit = rate.Every(r.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var wg sync.WaitGroup
	for i := 0; i < r.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				if err := limiter.Wait(ctx); err != nil {
					out <- Outcome{UserID: id, Err: err}
					continue
				}
				out <- Outcome{UserID: id, Err: job.Send(ctx, id)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Tally drains outcomes into counters, logging each failure.
func (r *Runner) Tally(jobID string, outcomes <-chan Outcome) Result {
	res := Result{JobID: jobID}
	for o := range outcomes {
		res.Total++
		if o.Err != nil {
			res.Failed++
			if r.log != nil {
				r.log.Warn("broadcast send failed",
					zap.String("job_id", jobID), zap.Int64("user_id", o.UserID), zap.Error(o.Err))
			}
			continue
		}
		res.Sent++
	}
	return res
}

// Broadcast runs job to completion.
func (r *Runner) Broadcast(ctx context.Context, job Job) Result {
	return r.Tally(job.ID, r.Run(ctx, job))
}
