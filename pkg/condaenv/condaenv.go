// Package condaenv reads conda environment definition files, the
// `ci/environment-<name>.yml` files that a CI manifest's jobs install from.
package condaenv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// File is a parsed conda environment definition.
type File struct {
	Name         string   `json:"name"`
	Channels     []string `json:"channels,omitempty"`
	Dependencies DepList  `json:"dependencies,omitempty"`
}

// DepList is the `dependencies:` list.  Conda allows the list to mix plain
// package specs with a `pip:` object holding pip-installed specs, so it needs
// custom (un)marshalling.
type DepList struct {
	Conda []Spec
	Pip   []Spec
}

func (dl *DepList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}
	var ret DepList
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			spec, err := ParseSpec(str)
			if err != nil {
				return err
			}
			ret.Conda = append(ret.Conda, spec)
			continue
		}
		var sub struct {
			Pip []string `json:"pip"`
		}
		if err := json.Unmarshal(item, &sub); err != nil {
			return fmt.Errorf("dependencies: %s: not a package spec or pip list", item)
		}
		for _, str := range sub.Pip {
			spec, err := ParseSpec(str)
			if err != nil {
				return err
			}
			ret.Pip = append(ret.Pip, spec)
		}
	}
	*dl = ret
	return nil
}

func (dl DepList) MarshalJSON() ([]byte, error) {
	items := make([]interface{}, 0, len(dl.Conda)+1)
	for _, spec := range dl.Conda {
		items = append(items, spec.String())
	}
	if len(dl.Pip) > 0 {
		pip := make([]string, 0, len(dl.Pip))
		for _, spec := range dl.Pip {
			pip = append(pip, spec.String())
		}
		items = append(items, map[string][]string{"pip": pip})
	}
	return json.Marshal(items)
}

// Spec is a single package requirement, like "python=3.6" or "pytest>=3.0".
// An unconstrained requirement has empty Op and Version.
type Spec struct {
	Name    string
	Op      string
	Version string
}

// specOps is ordered so that two-character operators match before their
// one-character prefixes.
var specOps = []string{"==", ">=", "<=", "!=", "=", ">", "<"}

// ParseSpec parses a conda or pip package spec.
func ParseSpec(str string) (Spec, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return Spec{}, fmt.Errorf("condaenv.ParseSpec: empty package spec")
	}
	cut := len(str)
	op := ""
	for _, candidate := range specOps {
		if idx := strings.Index(str, candidate); idx >= 0 && idx < cut {
			cut = idx
			op = candidate
		}
	}
	spec := Spec{Name: strings.TrimSpace(str[:cut])}
	if spec.Name == "" {
		return Spec{}, fmt.Errorf("condaenv.ParseSpec: %q: missing package name", str)
	}
	if op != "" {
		spec.Op = op
		spec.Version = strings.TrimSpace(str[cut+len(op):])
		if spec.Version == "" {
			return Spec{}, fmt.Errorf("condaenv.ParseSpec: %q: missing version after %q",
				str, op)
		}
	}
	return spec, nil
}

func (s Spec) String() string {
	return s.Name + s.Op + s.Version
}

// Parse parses environment-file YAML, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file, yaml.DisallowUnknownFields); err != nil {
		return nil, fmt.Errorf("condaenv.Parse: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("condaenv.Parse: missing environment name")
	}
	return &file, nil
}

// Load reads and parses an environment file.
func Load(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return file, nil
}

// Path returns the conventional path of the environment file for the given
// environment name, under the given CI directory.
func Path(ciDir, env string) string {
	return filepath.Join(ciDir, "environment-"+env+".yml")
}

// List returns the names of the environments that have a definition file
// under ciDir, sorted.
func List(ciDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(ciDir, "environment-*.yml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		base := filepath.Base(match)
		name := strings.TrimSuffix(strings.TrimPrefix(base, "environment-"), ".yml")
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
