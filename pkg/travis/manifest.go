// Package travis implements the subset of the Travis CI build-manifest schema
// used by conda-based Python projects: an environment-variable job matrix,
// lifecycle phases made of shell commands, and allow-failure/fast-finish
// build semantics.
package travis

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Manifest is a parsed `.travis.yml`.
type Manifest struct {
	Language string `json:"language,omitempty"`
	Dist     string `json:"dist,omitempty"`
	Sudo     Sudo   `json:"sudo,omitempty"`

	Notifications *Notifications `json:"notifications,omitempty"`

	Env    *EnvBlock `json:"env,omitempty"`
	Matrix *Matrix   `json:"matrix,omitempty"`

	BeforeInstall Commands `json:"before_install,omitempty"`
	Install       Commands `json:"install,omitempty"`
	BeforeScript  Commands `json:"before_script,omitempty"`
	Script        Commands `json:"script,omitempty"`
	AfterSuccess  Commands `json:"after_success,omitempty"`
	AfterFailure  Commands `json:"after_failure,omitempty"`
	AfterScript   Commands `json:"after_script,omitempty"`
}

// Matrix is the `matrix:` block: the set of jobs to run, which of them are
// non-blocking, and whether the build result may be reported before the
// non-blocking jobs finish.
type Matrix struct {
	FastFinish    bool          `json:"fast_finish,omitempty"`
	Include       []MatrixEntry `json:"include,omitempty"`
	AllowFailures []MatrixEntry `json:"allow_failures,omitempty"`
}

// MatrixEntry is one job configuration within the matrix.
type MatrixEntry struct {
	Name string `json:"name,omitempty"`
	Env  Vars   `json:"env,omitempty"`
}

// EnvBlock is the top-level `env:` block.  Only `global` bindings are
// supported; per-entry bindings belong in `matrix.include`.
type EnvBlock struct {
	Global Vars `json:"global,omitempty"`
}

// Notifications is the `notifications:` platform directive.  It is parsed (so
// that real-world manifests lint cleanly) but drives nothing locally.
type Notifications struct {
	Email EmailNotifications `json:"email,omitempty"`
}

// EmailNotifications accepts either a plain bool or the
// recipients/on_success/on_failure object form.
type EmailNotifications struct {
	Enabled    bool     `json:"enabled,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	OnSuccess  string   `json:"on_success,omitempty"`
	OnFailure  string   `json:"on_failure,omitempty"`
}

func (e *EmailNotifications) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*e = EmailNotifications{Enabled: enabled}
		return nil
	}
	type emailNotifications EmailNotifications // avoid recursion
	var obj emailNotifications
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("notifications.email: %w", err)
	}
	obj.Enabled = true
	*e = EmailNotifications(obj)
	return nil
}

// Sudo is the legacy `sudo:` directive; historically either a bool or the
// string "required".
type Sudo bool

func (s *Sudo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = Sudo(b)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("sudo: %s: not a bool or string", data)
	}
	*s = Sudo(str == "required" || str == "true")
	return nil
}

// Commands is a lifecycle phase's command list; the YAML may give either a
// single string or a list of strings.
type Commands []string

func (cs *Commands) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*cs = Commands{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("phase commands: %s: not a string or list of strings", data)
	}
	*cs = many
	return nil
}

func (vs *Vars) UnmarshalJSON(data []byte) error {
	var lines []string
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		lines = []string{one}
	} else if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("env: %s: not a string or list of strings", data)
	}
	var ret Vars
	for _, line := range lines {
		parsed, err := ParseVars(line)
		if err != nil {
			return err
		}
		ret = MergeVars(ret, parsed)
	}
	*vs = ret
	return nil
}

func (vs Vars) MarshalJSON() ([]byte, error) {
	return json.Marshal(vs.String())
}

// Phase identifies a job lifecycle phase.
type Phase string

const (
	PhaseBeforeInstall Phase = "before_install"
	PhaseInstall       Phase = "install"
	PhaseBeforeScript  Phase = "before_script"
	PhaseScript        Phase = "script"
	PhaseAfterSuccess  Phase = "after_success"
	PhaseAfterFailure  Phase = "after_failure"
	PhaseAfterScript   Phase = "after_script"
)

// Phases returns every lifecycle phase in canonical execution order.
func Phases() []Phase {
	return []Phase{
		PhaseBeforeInstall,
		PhaseInstall,
		PhaseBeforeScript,
		PhaseScript,
		PhaseAfterSuccess,
		PhaseAfterFailure,
		PhaseAfterScript,
	}
}

// Commands returns the manifest's command list for the given phase.
func (m *Manifest) Commands(phase Phase) []string {
	switch phase {
	case PhaseBeforeInstall:
		return m.BeforeInstall
	case PhaseInstall:
		return m.Install
	case PhaseBeforeScript:
		return m.BeforeScript
	case PhaseScript:
		return m.Script
	case PhaseAfterSuccess:
		return m.AfterSuccess
	case PhaseAfterFailure:
		return m.AfterFailure
	case PhaseAfterScript:
		return m.AfterScript
	default:
		return nil
	}
}

// GlobalEnv returns the `env.global` bindings, or nil.
func (m *Manifest) GlobalEnv() Vars {
	if m.Env == nil {
		return nil
	}
	return m.Env.Global
}

// Parse parses manifest YAML, rejecting keys outside the supported schema.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m, yaml.DisallowUnknownFields); err != nil {
		return nil, fmt.Errorf("travis.Parse: %w", err)
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}
