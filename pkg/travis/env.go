package travis

import (
	"fmt"
	"os"
	"strings"
)

// Var is a single NAME=VALUE environment binding.
type Var struct {
	Name  string
	Value string
}

func (v Var) String() string {
	if strings.ContainsAny(v.Value, " \t") {
		return fmt.Sprintf("%s=%q", v.Name, v.Value)
	}
	return v.Name + "=" + v.Value
}

// Vars is an ordered list of environment bindings, as written on an `env:`
// line.  Order is significant for display, but not for matching (see Equal).
type Vars []Var

// ParseVars parses a whitespace-separated list of NAME=VALUE bindings.
// Values may be single- or double-quoted to include whitespace.
func ParseVars(line string) (Vars, error) {
	var vars Vars
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}

		nameStart := i
		for i < len(line) && line[i] != '=' && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		if i >= len(line) || line[i] != '=' {
			return nil, fmt.Errorf("travis.ParseVars: %q: not a NAME=VALUE binding",
				line[nameStart:i])
		}
		name := line[nameStart:i]
		if !validVarName(name) {
			return nil, fmt.Errorf("travis.ParseVars: %q: invalid variable name", name)
		}
		i++ // '='

		var value strings.Builder
		var quote byte
	valueLoop:
		for i < len(line) {
			c := line[i]
			switch {
			case quote != 0:
				if c == quote {
					quote = 0
				} else {
					value.WriteByte(c)
				}
			case c == '\'' || c == '"':
				quote = c
			case c == ' ' || c == '\t':
				break valueLoop
			default:
				value.WriteByte(c)
			}
			i++
		}
		if quote != 0 {
			return nil, fmt.Errorf("travis.ParseVars: %s: unterminated %q quote", name, quote)
		}

		vars = append(vars, Var{Name: name, Value: value.String()})
	}
	return vars, nil
}

func validVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_',
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Get returns the value of the last binding of name.
func (vs Vars) Get(name string) (string, bool) {
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].Name == name {
			return vs[i].Value, true
		}
	}
	return "", false
}

// Strings returns the bindings as NAME=VALUE strings, suitable for
// (os/exec.Cmd).Env.
func (vs Vars) Strings() []string {
	ret := make([]string, 0, len(vs))
	for _, v := range vs {
		ret = append(ret, v.Name+"="+v.Value)
	}
	return ret
}

func (vs Vars) String() string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}

// Expand substitutes $NAME and ${NAME} references in s with the bindings in
// vs.  Unbound references expand to the empty string, as in a shell.
func (vs Vars) Expand(s string) string {
	return os.Expand(s, func(name string) string {
		val, _ := vs.Get(name)
		return val
	})
}

// Equal reports whether vs and other describe the same set of bindings,
// ignoring order.  This is the matching rule for matrix.allow_failures
// entries.
func (vs Vars) Equal(other Vars) bool {
	if len(vs) != len(other) {
		return false
	}
	for _, v := range vs {
		val, ok := other.Get(v.Name)
		if !ok || val != v.Value {
			return false
		}
	}
	for _, v := range other {
		val, ok := vs.Get(v.Name)
		if !ok || val != v.Value {
			return false
		}
	}
	return true
}

// MergeVars layers bindings, with later lists overriding earlier ones.
func MergeVars(layers ...Vars) Vars {
	var ret Vars
	for _, layer := range layers {
		for _, v := range layer {
			if _, ok := ret.Get(v.Name); ok {
				filtered := ret[:0]
				for _, old := range ret {
					if old.Name != v.Name {
						filtered = append(filtered, old)
					}
				}
				ret = filtered
			}
			ret = append(ret, v)
		}
	}
	return ret
}
