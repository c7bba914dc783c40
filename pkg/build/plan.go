// Package build expands a CI manifest into concrete jobs, runs them, and
// reports the result.
package build

import (
	"fmt"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/civetci/civet/pkg/travis"
)

// Job is one expanded matrix entry: a named environment plus the commands to
// run in it, grouped by lifecycle phase.
type Job struct {
	Number       int
	Name         string
	Env          travis.Vars
	AllowFailure bool
	Commands     map[travis.Phase][]string
}

// Plan is the set of jobs a manifest expands to.
type Plan struct {
	// Setup is the ordered list of phases that run before the script
	// phase; a failure in any of them errors the job.
	Setup []travis.Phase

	Jobs       []Job
	FastFinish bool
}

// ExpandOptions control matrix expansion.
type ExpandOptions struct {
	// Only, when non-empty, keeps only the jobs matching at least one
	// selector: either an exact job name, or a NAME=VALUE binding the job
	// carries.
	Only []string
}

// Expand expands a manifest's matrix into a Plan.  A manifest without a
// matrix expands to a single job with the global environment.
func Expand(m *travis.Manifest, opts ExpandOptions) (*Plan, error) {
	setup, err := setupSequence()
	if err != nil {
		return nil, err
	}
	plan := &Plan{Setup: setup}

	var include []travis.MatrixEntry
	var allowFailures []travis.MatrixEntry
	if m.Matrix != nil {
		include = m.Matrix.Include
		allowFailures = m.Matrix.AllowFailures
		plan.FastFinish = m.Matrix.FastFinish
	}
	if len(include) == 0 {
		include = []travis.MatrixEntry{{}}
	}

	commands := make(map[travis.Phase][]string, len(travis.Phases()))
	for _, phase := range travis.Phases() {
		if cmds := m.Commands(phase); len(cmds) > 0 {
			commands[phase] = cmds
		}
	}

	for i, entry := range include {
		job := Job{
			Number:   i + 1,
			Name:     entry.Name,
			Env:      travis.MergeVars(m.GlobalEnv(), entry.Env),
			Commands: commands,
		}
		if job.Name == "" {
			if env := entry.Env.String(); env != "" {
				job.Name = env
			} else {
				job.Name = fmt.Sprintf("job #%d", job.Number)
			}
		}
		for _, af := range allowFailures {
			if af.Env.Equal(entry.Env) {
				job.AllowFailure = true
				break
			}
		}
		if !selected(job, opts.Only) {
			continue
		}
		plan.Jobs = append(plan.Jobs, job)
	}

	if len(opts.Only) > 0 && len(plan.Jobs) == 0 {
		return nil, errors.Errorf("no job matches %q", strings.Join(opts.Only, ", "))
	}
	return plan, nil
}

func selected(job Job, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, sel := range only {
		if sel == job.Name {
			return true
		}
		if name, value, ok := strings.Cut(sel, "="); ok {
			if bound, has := job.Env.Get(name); has && bound == value {
				return true
			}
		}
	}
	return false
}

// setupSequence derives the pre-script phase ordering from the lifecycle
// graph rather than hard-coding it, so that a malformed ordering is caught as
// an error instead of silently running phases out of order.
func setupSequence() ([]travis.Phase, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	phases := travis.Phases()
	for _, phase := range phases {
		if err := g.AddVertex(string(phase)); err != nil {
			return nil, errors.Wrap(err, "building lifecycle graph")
		}
	}
	for i := 1; i < len(phases); i++ {
		if err := g.AddEdge(string(phases[i-1]), string(phases[i])); err != nil {
			return nil, errors.Wrap(err, "building lifecycle graph")
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, errors.Wrap(err, "ordering lifecycle phases")
	}

	var setup []travis.Phase
	for _, vertex := range order {
		phase := travis.Phase(vertex)
		if phase == travis.PhaseScript {
			break
		}
		setup = append(setup, phase)
	}
	return setup, nil
}
