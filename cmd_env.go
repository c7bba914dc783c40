package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/civetci/civet/pkg/cliutil"
	"github.com/civetci/civet/pkg/condaenv"
)

var argparserEnv = &cobra.Command{
	Use:   "env {[flags]|SUBCOMMAND...}",
	Short: "Inspect dependency-environment files",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserEnv)
}

func init() {
	var ciDir string
	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List the environments that have a definition file",
		Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := condaenv.List(ciDir)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ciDir, "ci-dir", "ci",
		"Look for environment files in `DIR`")

	argparserEnv.AddCommand(cmd)
}

func init() {
	var format string
	cmd := &cobra.Command{
		Use:   "show [flags] ENVIRONMENT.yml",
		Short: "Show an environment file's packages",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := condaenv.Load(args[0])
			if err != nil {
				return err
			}

			switch format {
			case "table":
				fmt.Printf("name: %s\n", file.Name)
				if len(file.Channels) > 0 {
					fmt.Printf("channels: %v\n", file.Channels)
				}
				table := tabwriter.NewWriter(os.Stdout, 0, 1, 2, ' ', 0)
				fmt.Fprintln(table, "PACKAGE\tCONSTRAINT\tINSTALLER")
				for _, spec := range file.Dependencies.Conda {
					fmt.Fprintf(table, "%s\t%s\tconda\n", spec.Name, spec.Op+spec.Version)
				}
				for _, spec := range file.Dependencies.Pip {
					fmt.Fprintf(table, "%s\t%s\tpip\n", spec.Name, spec.Op+spec.Version)
				}
				return table.Flush()
			case "yaml":
				type view struct {
					Name     string   `yaml:"name"`
					Channels []string `yaml:"channels,omitempty"`
					Conda    []string `yaml:"conda,omitempty"`
					Pip      []string `yaml:"pip,omitempty"`
				}
				out := view{Name: file.Name, Channels: file.Channels}
				for _, spec := range file.Dependencies.Conda {
					out.Conda = append(out.Conda, spec.String())
				}
				for _, spec := range file.Dependencies.Pip {
					out.Pip = append(out.Pip, spec.String())
				}
				bs, err := yaml.Marshal(out)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(bs)
				return err
			default:
				return fmt.Errorf("invalid format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "table",
		"Output `FORMAT`: one of table or yaml")

	argparserEnv.AddCommand(cmd)
}
