// Package sandbox provides the isolated environments that build jobs run in.
package sandbox

import (
	"context"
	"os"

	"github.com/datawire/dlib/dexec"
)

// An Executor opens one Session per job.  Sessions belonging to different
// jobs are isolated from each other; commands within one Session share state
// (working directory contents, installed packages) the way consecutive build
// steps expect to.
type Executor interface {
	Open(ctx context.Context, env []string) (Session, error)
}

// A Session runs a job's shell commands.
type Session interface {
	// Run executes one shell command line, returning an error on non-zero
	// exit.
	Run(ctx context.Context, command string) error

	// Close releases the session's resources.
	Close(ctx context.Context) error
}

// Host is an Executor that runs commands directly on the host, in the given
// working directory.  Isolation between jobs is limited to their
// environment variables.
type Host struct {
	Dir string
}

func (h Host) Open(_ context.Context, env []string) (Session, error) {
	return &hostSession{
		dir: h.Dir,
		env: append(os.Environ(), env...),
	}, nil
}

type hostSession struct {
	dir string
	env []string
}

func (s *hostSession) Run(ctx context.Context, command string) error {
	cmd := dexec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.dir
	cmd.Env = s.env
	return cmd.Run()
}

func (s *hostSession) Close(context.Context) error {
	return nil
}
