package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"
	"golang.org/x/sync/errgroup"

	"github.com/civetci/civet/pkg/sandbox"
	"github.com/civetci/civet/pkg/travis"
)

// Status is a job's (or the whole build's) outcome.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"   // a script command exited non-zero
	StatusErrored  Status = "errored"  // a setup phase exited non-zero
	StatusCanceled Status = "canceled" // fast_finish or external cancellation
)

// Determinate reports whether the status is a final outcome.
func (s Status) Determinate() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusCanceled:
		return true
	default:
		return false
	}
}

// RunOptions control build execution.
type RunOptions struct {
	// Executor supplies per-job sandboxes.  Defaults to sandbox.Host{}.
	Executor sandbox.Executor

	// Concurrency caps how many jobs run at once.  <= 0 means no cap.
	Concurrency int
}

// Run executes every job in the plan and returns the aggregated result.  A
// non-nil error reports a runner malfunction, not a failing job: jobs that
// fail or error are reported through the Result, matching the platform rule
// that only required (non-allow-failure) jobs decide the build.
func Run(ctx context.Context, plan *Plan, opts RunOptions) (*Result, error) {
	executor := opts.Executor
	if executor == nil {
		executor = sandbox.Host{}
	}

	result := &Result{
		Jobs:    make([]JobResult, len(plan.Jobs)),
		Started: time.Now(),
	}
	for i, job := range plan.Jobs {
		result.Jobs[i] = JobResult{
			Number:       job.Number,
			Name:         job.Name,
			AllowFailure: job.AllowFailure,
			Status:       StatusPending,
		}
	}

	// fastFinish cancels the jobs that are still running (necessarily
	// allow-failure ones) once every required job has a final outcome.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	requiredLeft := 0
	for _, job := range plan.Jobs {
		if !job.AllowFailure {
			requiredLeft++
		}
	}
	var mu sync.Mutex
	jobDone := func(job Job) {
		if !plan.FastFinish || job.AllowFailure {
			return
		}
		mu.Lock()
		requiredLeft--
		done := requiredLeft == 0
		mu.Unlock()
		if done {
			cancel()
		}
	}

	grp := new(errgroup.Group)
	if opts.Concurrency > 0 {
		grp.SetLimit(opts.Concurrency)
	}
	for i := range plan.Jobs {
		i := i
		job := plan.Jobs[i]
		grp.Go(func() error {
			defer jobDone(job)
			result.Jobs[i] = runJob(ctx, executor, plan, job)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(result.Started)
	result.Status = StatusPassed
	for _, jr := range result.Jobs {
		if !jr.AllowFailure && jr.Status != StatusPassed {
			result.Status = StatusFailed
			break
		}
	}
	return result, nil
}

// runJob runs one job's phases in its own sandbox session.  It never panics
// the runner; a panicking executor turns into an errored job.
func runJob(ctx context.Context, executor sandbox.Executor, plan *Plan, job Job) (res JobResult) {
	res = JobResult{
		Number:       job.Number,
		Name:         job.Name,
		AllowFailure: job.AllowFailure,
		Status:       StatusRunning,
	}
	started := time.Now()
	defer func() {
		res.Duration = time.Since(started)
		if r := recover(); r != nil {
			err := derror.PanicToError(r)
			dlog.Errorf(ctx, "job panicked: %+v", err)
			res.Status = StatusErrored
			res.Reason = fmt.Sprintf("panic: %v", err)
		}
	}()

	ctx = dlog.WithField(ctx, "job", job.Name)

	if ctx.Err() != nil {
		res.Status = StatusCanceled
		return res
	}

	sess, err := executor.Open(ctx, job.Env.Strings())
	if err != nil {
		res.Status = StatusErrored
		res.Reason = err.Error()
		return res
	}
	defer func() {
		if err := sess.Close(dlog.WithField(context.Background(), "job", job.Name)); err != nil {
			dlog.Warnf(ctx, "closing sandbox: %v", err)
		}
	}()

	// Setup phases: the first non-zero exit errors the job immediately.
	for _, phase := range plan.Setup {
		for _, command := range job.Commands[phase] {
			if err := runCommand(ctx, sess, phase, command); err != nil {
				if ctx.Err() != nil {
					res.Status = StatusCanceled
					return res
				}
				res.Status = StatusErrored
				res.Reason = fmt.Sprintf("%s: %v", phase, err)
				return res
			}
		}
	}

	// Script phase: every command runs even after a failure; any failure
	// fails the job.
	res.Status = StatusPassed
	for _, command := range job.Commands[travis.PhaseScript] {
		if err := runCommand(ctx, sess, travis.PhaseScript, command); err != nil {
			if ctx.Err() != nil {
				res.Status = StatusCanceled
				return res
			}
			res.Status = StatusFailed
			if res.Reason == "" {
				res.Reason = fmt.Sprintf("%s: %v", travis.PhaseScript, err)
			}
		}
	}

	// The after_* phases never change the job's outcome.
	epilogue := []travis.Phase{travis.PhaseAfterScript}
	if res.Status == StatusPassed {
		epilogue = append([]travis.Phase{travis.PhaseAfterSuccess}, epilogue...)
	} else {
		epilogue = append([]travis.Phase{travis.PhaseAfterFailure}, epilogue...)
	}
	for _, phase := range epilogue {
		for _, command := range job.Commands[phase] {
			if err := runCommand(ctx, sess, phase, command); err != nil {
				if ctx.Err() != nil {
					return res
				}
				dlog.Warnf(ctx, "%s: %v (ignored)", phase, err)
			}
		}
	}

	return res
}

func runCommand(ctx context.Context, sess sandbox.Session, phase travis.Phase, command string) error {
	ctx = dlog.WithField(ctx, "phase", string(phase))
	dlog.Infof(ctx, "$ %s", command)
	return sess.Run(ctx, command)
}
