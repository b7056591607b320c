package config

import (
	"os"
)

// EnvironmentExpander expands environment variable placeholders within an
// input byte slice before the YAML is parsed.
type EnvironmentExpander interface {
	// Expand replaces ${VAR} or $VAR placeholders in the input and returns
	// the expanded byte slice.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander is an EnvironmentExpander backed by os.ExpandEnv.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates a new OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand uses os.ExpandEnv on the input. Unset variables are replaced by an
// empty string; the returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}

// Verify interfaces
var _ EnvironmentExpander = (*OsEnvironmentExpander)(nil)
