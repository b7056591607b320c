// Package pipeline defines the staging pipeline: its YAML definition, the
// scope registry of produced staging tables, and the orchestrator that runs
// the declared steps in order with fail-fast semantics.
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
	sqlutil "github.com/ejcourts/predms/pkg/etl/support/util/sqlutil"
)

const moduleName = "pipeline"

// DefinitionBytes holds the content of the pipeline definition file,
// typically embedded into the binary and passed from main.go.
type DefinitionBytes []byte

// Operation is one SQL script inside a step.
type Operation struct {
	// Kind labels the operation for logs (e.g. "create", "populate", "index").
	Kind string `yaml:"kind"`
	// SQL is the script text. It may contain GO batch separators and the
	// {{database}} placeholder.
	SQL string `yaml:"sql"`
}

// Step is one declared pipeline step.
type Step struct {
	// ID is the unique step name.
	ID string `yaml:"id"`
	// Description is a human-readable summary used in logs and reports.
	Description string `yaml:"description"`
	// DependsOn lists staging tables that must exist in the scope registry
	// before this step may run.
	DependsOn []string `yaml:"depends-on"`
	// Produces lists the staging tables this step creates and fills.
	Produces []string `yaml:"produces"`
	// Operations are the SQL scripts executed in order, as one unit of work.
	Operations []Operation `yaml:"operations"`
}

// Definition is the full declared pipeline.
type Definition struct {
	// Name identifies the pipeline in run history and logs.
	Name string `yaml:"name"`
	// Steps run in exactly this order. There is no dependency-driven
	// reordering: depends-on entries are verified, never used to sort.
	Steps []Step `yaml:"steps"`
}

// LoadDefinition parses and validates a pipeline definition. Validation
// failures are CONFIG-classified: every step needs an ID and at least one
// operation, IDs and produced tables must be unique valid identifiers, and
// every depends-on entry must be produced by a strictly earlier step.
func LoadDefinition(data DefinitionBytes) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, exception.NewETLError(moduleName, "failed to parse pipeline definition", err, exception.ClassConfig)
	}
	if def.Name == "" {
		return nil, exception.NewConfigError(moduleName, "pipeline definition has no name")
	}
	if len(def.Steps) == 0 {
		return nil, exception.NewConfigError(moduleName, "pipeline definition has no steps")
	}

	seenIDs := make(map[string]bool)
	producedSoFar := make(map[string]string) // table -> producing step

	for i, step := range def.Steps {
		if step.ID == "" {
			return nil, exception.NewConfigError(moduleName, "step %d has no id", i+1)
		}
		if seenIDs[step.ID] {
			return nil, exception.NewConfigError(moduleName, "duplicate step id %q", step.ID)
		}
		seenIDs[step.ID] = true

		if len(step.Operations) == 0 {
			return nil, exception.NewConfigError(moduleName, "step %q has no operations", step.ID)
		}
		for _, op := range step.Operations {
			if op.SQL == "" {
				return nil, exception.NewConfigError(moduleName, "step %q has an operation with empty sql", step.ID)
			}
		}

		for _, dep := range step.DependsOn {
			if _, err := sqlutil.ValidateIdentifier(dep); err != nil {
				return nil, exception.NewConfigError(moduleName, "step %q: invalid depends-on table %q", step.ID, dep)
			}
			if _, ok := producedSoFar[dep]; !ok {
				return nil, exception.NewConfigError(moduleName,
					"step %q depends on table %q, which no earlier step produces", step.ID, dep)
			}
		}

		for _, table := range step.Produces {
			if _, err := sqlutil.ValidateIdentifier(table); err != nil {
				return nil, exception.NewConfigError(moduleName, "step %q: invalid produced table %q", step.ID, table)
			}
			if producer, ok := producedSoFar[table]; ok {
				return nil, exception.NewConfigError(moduleName,
					"table %q produced by both %q and %q", table, producer, step.ID)
			}
			producedSoFar[table] = step.ID
		}
	}

	return &def, nil
}

// StepByID returns the step with the given ID, or an error if absent.
func (d *Definition) StepByID(id string) (*Step, error) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("no step with id %q", id)
}
