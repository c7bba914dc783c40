package build

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// JobResult is one job's outcome.
type JobResult struct {
	Number       int           `json:"number" yaml:"number"`
	Name         string        `json:"name" yaml:"name"`
	Status       Status        `json:"status" yaml:"status"`
	AllowFailure bool          `json:"allow_failure,omitempty" yaml:"allow_failure,omitempty"`
	Reason       string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Duration     time.Duration `json:"-" yaml:"-"`
}

// Result is a whole build's outcome.
type Result struct {
	Status   Status        `json:"status" yaml:"status"`
	Jobs     []JobResult   `json:"jobs" yaml:"jobs"`
	Started  time.Time     `json:"-" yaml:"-"`
	Duration time.Duration `json:"-" yaml:"-"`
}

// Passed reports whether every required job passed.
func (r *Result) Passed() bool {
	return r.Status == StatusPassed
}

// Report is the serializable view of a Result, with human-readable
// timestamps and durations.
type Report struct {
	Status   Status      `json:"status" yaml:"status"`
	Started  string      `json:"started" yaml:"started"`
	Duration string      `json:"duration" yaml:"duration"`
	Jobs     []ReportJob `json:"jobs" yaml:"jobs"`
}

type ReportJob struct {
	Number       int    `json:"number" yaml:"number"`
	Name         string `json:"name" yaml:"name"`
	Status       Status `json:"status" yaml:"status"`
	AllowFailure bool   `json:"allow_failure,omitempty" yaml:"allow_failure,omitempty"`
	Duration     string `json:"duration" yaml:"duration"`
	Reason       string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Report builds the serializable view.  The build timestamp honors
// SOURCE_DATE_EPOCH so that output can be made deterministic.
func (r *Result) Report() Report {
	ret := Report{
		Status:   r.Status,
		Started:  stamp(r.Started).UTC().Format(time.RFC3339),
		Duration: r.Duration.Round(time.Millisecond).String(),
		Jobs:     make([]ReportJob, 0, len(r.Jobs)),
	}
	for _, jr := range r.Jobs {
		ret.Jobs = append(ret.Jobs, ReportJob{
			Number:       jr.Number,
			Name:         jr.Name,
			Status:       jr.Status,
			AllowFailure: jr.AllowFailure,
			Duration:     jr.Duration.Round(time.Millisecond).String(),
			Reason:       jr.Reason,
		})
	}
	return ret
}

// WriteSummary writes the human-readable build summary.  Pass width == 0 to
// do no wrapping of the reason column.
func (r *Result) WriteSummary(w io.Writer, width int) error {
	table := tabwriter.NewWriter(
		w,   // output
		0,   // minwidth
		1,   // tabwidth
		2,   // padding
		' ', // padchar
		0)   // flags

	fmt.Fprintln(table, "JOB\tNAME\tSTATUS\tDURATION\tNOTE")
	for _, jr := range r.Jobs {
		note := jr.Reason
		if jr.AllowFailure && jr.Status != StatusPassed && jr.Status != StatusPending {
			if note != "" {
				note += " "
			}
			note += "(failure allowed)"
		}
		if width > 3 && len(note) > width {
			note = note[:width-3] + "..."
		}
		fmt.Fprintf(table, "%d\t%s\t%s\t%s\t%s\n",
			jr.Number, jr.Name, jr.Status,
			jr.Duration.Round(time.Millisecond), note)
	}
	if err := table.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nbuild %s in %s\n",
		strings.ToUpper(string(r.Status)), r.Duration.Round(time.Millisecond))
	return err
}

// stamp returns t, unless SOURCE_DATE_EPOCH overrides it.
func stamp(t time.Time) time.Time {
	if secs, err := strconv.ParseInt(os.Getenv("SOURCE_DATE_EPOCH"), 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	return t
}
