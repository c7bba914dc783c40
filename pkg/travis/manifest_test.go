package travis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civetci/civet/pkg/travis"
)

const sampleManifest = `
language: python
sudo: false
notifications:
  email: false
matrix:
  fast_finish: true
  include:
    - env: CONDA_ENV=py35
    - env: CONDA_ENV=py36
    - env: CONDA_ENV=py36-xarray-dev
    - env: CONDA_ENV=py37
  allow_failures:
    - env: CONDA_ENV=py36-xarray-dev
before_install:
  - wget https://repo.continuum.io/miniconda/Miniconda3-latest-Linux-x86_64.sh -O miniconda.sh
  - bash miniconda.sh -b -p $HOME/miniconda
install:
  - conda env create -f ci/environment-$CONDA_ENV.yml
  - pip install --no-deps -e .
script:
  - py.test aospy --cov=aospy --cov-config .coveragerc
  - flake8 aospy
after_success:
  - coveralls
`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := travis.Parse([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "python", m.Language)
	assert.False(t, bool(m.Sudo))
	require.NotNil(t, m.Notifications)
	assert.False(t, m.Notifications.Email.Enabled)

	require.NotNil(t, m.Matrix)
	assert.True(t, m.Matrix.FastFinish)
	require.Len(t, m.Matrix.Include, 4)
	assert.Equal(t, travis.Vars{{Name: "CONDA_ENV", Value: "py36-xarray-dev"}},
		m.Matrix.Include[2].Env)
	require.Len(t, m.Matrix.AllowFailures, 1)

	assert.Len(t, m.BeforeInstall, 2)
	assert.Len(t, m.Install, 2)
	assert.Equal(t, []string{
		"py.test aospy --cov=aospy --cov-config .coveragerc",
		"flake8 aospy",
	}, m.Commands(travis.PhaseScript))
	assert.Equal(t, []string{"coveralls"}, m.Commands(travis.PhaseAfterSuccess))
	assert.Empty(t, m.Commands(travis.PhaseAfterFailure))
}

func TestParseForms(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		In    string
		Check func(t *testing.T, m *travis.Manifest)
		Err   string
	}{
		"script-scalar": {
			In: "script: make test\n",
			Check: func(t *testing.T, m *travis.Manifest) {
				assert.Equal(t, travis.Commands{"make test"}, m.Script)
			},
		},
		"sudo-required": {
			In: "sudo: required\n",
			Check: func(t *testing.T, m *travis.Manifest) {
				assert.True(t, bool(m.Sudo))
			},
		},
		"email-object": {
			In: "notifications:\n  email:\n    recipients: [dev@example.org]\n    on_failure: always\n",
			Check: func(t *testing.T, m *travis.Manifest) {
				assert.True(t, m.Notifications.Email.Enabled)
				assert.Equal(t, []string{"dev@example.org"}, m.Notifications.Email.Recipients)
				assert.Equal(t, "always", m.Notifications.Email.OnFailure)
			},
		},
		"env-global": {
			In: "env:\n  global:\n    - CI=true\n    - COVERAGE=false\n",
			Check: func(t *testing.T, m *travis.Manifest) {
				assert.Equal(t, travis.Vars{
					{Name: "CI", Value: "true"},
					{Name: "COVERAGE", Value: "false"},
				}, m.GlobalEnv())
			},
		},
		"entry-env-list": {
			In: "matrix:\n  include:\n    - env:\n        - CONDA_ENV=py36\n        - COVERAGE=true\n",
			Check: func(t *testing.T, m *travis.Manifest) {
				assert.Equal(t, travis.Vars{
					{Name: "CONDA_ENV", Value: "py36"},
					{Name: "COVERAGE", Value: "true"},
				}, m.Matrix.Include[0].Env)
			},
		},
		"unknown-key": {
			In:  "language: python\nservices: [docker]\n",
			Err: "unknown field",
		},
		"bad-env": {
			In:  "matrix:\n  include:\n    - env: not a binding\n",
			Err: "not a NAME=VALUE binding",
		},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			m, err := travis.Parse([]byte(tc.In))
			if tc.Err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.Err)
				return
			}
			require.NoError(t, err)
			tc.Check(t, m)
		})
	}
}
