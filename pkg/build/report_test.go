package build_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civetci/civet/pkg/build"
)

func sampleResult() *build.Result {
	return &build.Result{
		Status:  build.StatusFailed,
		Started: time.Date(2019, 7, 1, 12, 0, 0, 0, time.UTC),
		Jobs: []build.JobResult{
			{Number: 1, Name: "CONDA_ENV=py36", Status: build.StatusPassed,
				Duration: 90 * time.Second},
			{Number: 2, Name: "CONDA_ENV=py37", Status: build.StatusFailed,
				Reason: "script: exit status 1", Duration: 80 * time.Second},
			{Number: 3, Name: "CONDA_ENV=py36-xarray-dev", Status: build.StatusErrored,
				AllowFailure: true, Reason: "install: exit status 1",
				Duration: 5 * time.Second},
		},
		Duration: 95 * time.Second,
	}
}

//nolint:paralleltest // can't use .Parallel() with .Setenv()
func TestReport(t *testing.T) {
	t.Setenv("SOURCE_DATE_EPOCH", "1561939200") // 2019-07-01T00:00:00Z

	report := sampleResult().Report()
	assert.Equal(t, build.StatusFailed, report.Status)
	assert.Equal(t, "2019-07-01T00:00:00Z", report.Started)
	assert.Equal(t, "1m35s", report.Duration)
	require.Len(t, report.Jobs, 3)
	assert.Equal(t, "1m30s", report.Jobs[0].Duration)
	assert.True(t, report.Jobs[2].AllowFailure)
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	require.NoError(t, sampleResult().WriteSummary(&out, 0))
	str := out.String()

	assert.Contains(t, str, "CONDA_ENV=py37")
	assert.Contains(t, str, "failed")
	assert.Contains(t, str, "script: exit status 1")
	assert.Contains(t, str, "(failure allowed)")
	assert.Contains(t, str, "build FAILED in 1m35s")
}

func TestStatusDeterminate(t *testing.T) {
	t.Parallel()
	assert.False(t, build.StatusPending.Determinate())
	assert.False(t, build.StatusRunning.Determinate())
	assert.True(t, build.StatusPassed.Determinate())
	assert.True(t, build.StatusFailed.Determinate())
	assert.True(t, build.StatusErrored.Determinate())
	assert.True(t, build.StatusCanceled.Determinate())
}
