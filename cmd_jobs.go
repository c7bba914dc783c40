package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/civetci/civet/pkg/build"
	"github.com/civetci/civet/pkg/cliutil"
	"github.com/civetci/civet/pkg/travis"
)

type jobListing struct {
	Number       int    `json:"number" yaml:"number"`
	Name         string `json:"name" yaml:"name"`
	Env          string `json:"env,omitempty" yaml:"env,omitempty"`
	AllowFailure bool   `json:"allow_failure,omitempty" yaml:"allow_failure,omitempty"`
}

func init() {
	var flags struct {
		Format string
		Only   []string
	}
	cmd := &cobra.Command{
		Use:   "jobs [flags] MANIFEST.yml",
		Short: "List the jobs a manifest's matrix expands to",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := travis.Load(args[0])
			if err != nil {
				return err
			}
			plan, err := build.Expand(manifest, build.ExpandOptions{Only: flags.Only})
			if err != nil {
				return err
			}

			listings := make([]jobListing, 0, len(plan.Jobs))
			for _, job := range plan.Jobs {
				listings = append(listings, jobListing{
					Number:       job.Number,
					Name:         job.Name,
					Env:          job.Env.String(),
					AllowFailure: job.AllowFailure,
				})
			}

			switch flags.Format {
			case "table":
				table := tabwriter.NewWriter(os.Stdout, 0, 1, 2, ' ', 0)
				fmt.Fprintln(table, "JOB\tNAME\tENV\tALLOW FAILURE")
				for _, listing := range listings {
					fmt.Fprintf(table, "%d\t%s\t%s\t%v\n",
						listing.Number, listing.Name, listing.Env, listing.AllowFailure)
				}
				return table.Flush()
			case "yaml":
				bs, err := yaml.Marshal(listings)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(bs)
				return err
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			default:
				return fmt.Errorf("invalid format %q", flags.Format)
			}
		},
	}
	cmd.Flags().StringVar(&flags.Format, "format", "table",
		"Output `FORMAT`: one of table, yaml, or json")
	cmd.Flags().StringArrayVar(&flags.Only, "only", nil,
		"Keep only the jobs matching `SELECTOR` (a job name or a NAME=VALUE binding); repeatable")

	argparser.AddCommand(cmd)
}
