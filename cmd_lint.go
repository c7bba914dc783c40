package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/civetci/civet/pkg/cliutil"
	"github.com/civetci/civet/pkg/travis"
)

func init() {
	var flags struct {
		CIDir      string
		EnvFileVar string
		NoEnvFiles bool
	}
	cmd := &cobra.Command{
		Use:   "lint [flags] MANIFEST.yml",
		Short: "Check a CI manifest for problems",
		Long: "Check a CI manifest against the rules the CI platform would enforce: " +
			"the YAML must parse against the schema, every matrix entry must describe " +
			"a distinct job, every allow_failures entry must match an included job, " +
			"and every dependency-environment file that a job selects must exist and " +
			"declare the matching environment name.  All problems are reported, not " +
			"just the first.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := travis.Load(args[0])
			if err != nil {
				return err
			}

			opts := travis.LintOptions{
				CIDir:      flags.CIDir,
				EnvFileVar: flags.EnvFileVar,
			}
			if !flags.NoEnvFiles {
				opts.Dir = filepath.Dir(args[0])
			}
			if err := travis.Lint(manifest, opts); err != nil {
				problems := utilerrors.Flatten(err.(utilerrors.Aggregate)).Errors()
				for _, problem := range problems {
					cmd.PrintErrf("%s: %v\n", args[0], problem)
				}
				return fmt.Errorf("%d problems found", len(problems))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.CIDir, "ci-dir", travis.DefaultCIDir,
		"Look for environment files in `DIR`, relative to the manifest")
	cmd.Flags().StringVar(&flags.EnvFileVar, "env-var", travis.DefaultEnvFileVar,
		"The environment variable `NAME` whose value selects a job's environment file")
	cmd.Flags().BoolVar(&flags.NoEnvFiles, "no-env-files", false,
		"Skip the environment-file existence checks")

	argparser.AddCommand(cmd)
}
