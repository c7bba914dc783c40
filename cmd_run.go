package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/civetci/civet/pkg/build"
	"github.com/civetci/civet/pkg/cliutil"
	"github.com/civetci/civet/pkg/sandbox"
	"github.com/civetci/civet/pkg/travis"
)

func init() {
	var flags struct {
		Concurrency int
		Only        []string
		Format      string
		NoLint      bool
		CIDir       string
		Image       string
		ImageFile   string
	}
	cmd := &cobra.Command{
		Use:   "run [flags] MANIFEST.yml",
		Short: "Run a manifest's build matrix locally",
		Long: "Expand the manifest's matrix and run every job, in parallel, the way " +
			"the CI platform would: a non-zero exit in a setup phase errors the job, " +
			"a non-zero exit in the script phase fails it, allow_failures jobs never " +
			"fail the build, and with fast_finish the build finishes as soon as every " +
			"required job is done." +
			"\n\n" +
			"By default jobs run directly on the host, isolated only by their " +
			"environment variables.  Pass --image or --imagefile to give each job its " +
			"own Docker container instead (this requires interacting with a running " +
			"Docker).",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			manifest, err := travis.Load(args[0])
			if err != nil {
				return err
			}
			dir := filepath.Dir(args[0])

			if !flags.NoLint {
				if err := travis.Lint(manifest, travis.LintOptions{
					Dir:   dir,
					CIDir: flags.CIDir,
				}); err != nil {
					return fmt.Errorf("%s: %w (pass --no-lint to run anyway)", args[0], err)
				}
			}

			plan, err := build.Expand(manifest, build.ExpandOptions{Only: flags.Only})
			if err != nil {
				return err
			}

			var executor sandbox.Executor = sandbox.Host{Dir: dir}
			if flags.Image != "" || flags.ImageFile != "" {
				if flags.Image != "" && flags.ImageFile != "" {
					return fmt.Errorf("--image and --imagefile are mutually exclusive")
				}
				absDir, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				executor = sandbox.Docker{
					Image:     flags.Image,
					ImageFile: flags.ImageFile,
					Dir:       absDir,
				}
			}

			result, err := build.Run(ctx, plan, build.RunOptions{
				Executor:    executor,
				Concurrency: flags.Concurrency,
			})
			if err != nil {
				return err
			}

			switch flags.Format {
			case "summary":
				if err := result.WriteSummary(os.Stdout, cliutil.GetTerminalWidth()); err != nil {
					return err
				}
			case "yaml":
				bs, err := yaml.Marshal(result.Report())
				if err != nil {
					return err
				}
				if _, err := os.Stdout.Write(bs); err != nil {
					return err
				}
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result.Report()); err != nil {
					return err
				}
			default:
				return fmt.Errorf("invalid format %q", flags.Format)
			}

			if !result.Passed() {
				return fmt.Errorf("build %s", result.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0,
		"Run at most `N` jobs at once (0 means no cap)")
	cmd.Flags().StringArrayVar(&flags.Only, "only", nil,
		"Run only the jobs matching `SELECTOR` (a job name or a NAME=VALUE binding); repeatable")
	cmd.Flags().StringVar(&flags.Format, "format", "summary",
		"Output `FORMAT`: one of summary, yaml, or json")
	cmd.Flags().BoolVar(&flags.NoLint, "no-lint", false,
		"Skip manifest validation before running")
	cmd.Flags().StringVar(&flags.CIDir, "ci-dir", travis.DefaultCIDir,
		"Look for environment files in `DIR`, relative to the manifest")
	cmd.Flags().StringVar(&flags.Image, "image", "",
		"Run each job in a Docker container from the local image `TAG`")
	cmd.Flags().StringVar(&flags.ImageFile, "imagefile", "",
		"Run each job in a Docker container from the image tarball `FILE`")

	argparser.AddCommand(cmd)
}
