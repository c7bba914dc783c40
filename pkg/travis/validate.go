package travis

import (
	"fmt"
	"os"
	"path/filepath"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/civetci/civet/pkg/condaenv"
)

// LintOptions control manifest validation.
type LintOptions struct {
	// Dir is the directory the manifest lives in; environment-file
	// references are resolved relative to it.  When empty, no
	// environment-file checks are performed.
	Dir string

	// CIDir is the directory (relative to Dir) holding the environment
	// files.  Defaults to "ci".
	CIDir string

	// EnvFileVar is the environment variable whose value selects a job's
	// environment file.  Defaults to "CONDA_ENV".
	EnvFileVar string
}

// DefaultEnvFileVar selects a job's dependency-environment file, via
// CIDir/environment-$CONDA_ENV.yml.
const DefaultEnvFileVar = "CONDA_ENV"

// DefaultCIDir is where the environment files conventionally live, relative
// to the manifest.
const DefaultCIDir = "ci"

// Lint checks a manifest against the rules the CI platform would enforce, and
// returns every problem found (as an utilerrors.Aggregate), not just the
// first:
//
//   - a `script` phase must be present;
//   - each matrix.include entry must bind a distinct environment;
//   - each matrix.include entry must bind a distinct EnvFileVar value;
//   - every matrix.allow_failures entry must match some include entry;
//   - every environment file a job selects must exist, parse, and carry the
//     selecting value as its name.
func Lint(m *Manifest, opts LintOptions) error {
	if opts.CIDir == "" {
		opts.CIDir = DefaultCIDir
	}
	if opts.EnvFileVar == "" {
		opts.EnvFileVar = DefaultEnvFileVar
	}

	var errs []error

	if len(m.Script) == 0 {
		errs = append(errs, fmt.Errorf("manifest has no script phase"))
	}

	var include []MatrixEntry
	var allowFailures []MatrixEntry
	if m.Matrix != nil {
		include = m.Matrix.Include
		allowFailures = m.Matrix.AllowFailures
	}

	seenEnvs := sets.NewString()
	seenEnvFiles := sets.NewString()
	for i, entry := range include {
		key := entry.Env.String()
		if seenEnvs.Has(key) {
			errs = append(errs, fmt.Errorf(
				"matrix.include[%d]: duplicate job environment %q", i, key))
		}
		seenEnvs.Insert(key)

		jobEnv := MergeVars(m.GlobalEnv(), entry.Env)
		envName, ok := jobEnv.Get(opts.EnvFileVar)
		if !ok {
			continue
		}
		if seenEnvFiles.Has(envName) {
			errs = append(errs, fmt.Errorf(
				"matrix.include[%d]: duplicate %s=%q", i, opts.EnvFileVar, envName))
		}
		seenEnvFiles.Insert(envName)

		if opts.Dir != "" {
			errs = append(errs, lintEnvFile(opts, i, envName)...)
		}
	}

	for i, entry := range allowFailures {
		if !matchesInclude(entry, include) {
			errs = append(errs, fmt.Errorf(
				"matrix.allow_failures[%d]: env %q matches no matrix.include entry",
				i, entry.Env.String()))
		}
	}

	return utilerrors.NewAggregate(errs)
}

func lintEnvFile(opts LintOptions, entryIdx int, envName string) []error {
	filename := condaenv.Path(filepath.Join(opts.Dir, opts.CIDir), envName)
	if _, err := os.Stat(filename); err != nil {
		return []error{fmt.Errorf("matrix.include[%d]: %s=%q: %w",
			entryIdx, opts.EnvFileVar, envName, err)}
	}
	file, err := condaenv.Load(filename)
	if err != nil {
		return []error{fmt.Errorf("matrix.include[%d]: %w", entryIdx, err)}
	}
	if file.Name != envName {
		return []error{fmt.Errorf(
			"matrix.include[%d]: %s declares environment %q, want %q",
			entryIdx, filename, file.Name, envName)}
	}
	return nil
}

func matchesInclude(entry MatrixEntry, include []MatrixEntry) bool {
	for _, candidate := range include {
		if entry.Env.Equal(candidate.Env) {
			return true
		}
	}
	return false
}
