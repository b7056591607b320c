package pipeline

import "sort"

// ScopeEntry records one staging table produced during the current run.
type ScopeEntry struct {
	// Table is the staging table name.
	Table string
	// ProducedBy is the id of the step that built the table.
	ProducedBy string
	// Rows is the row count the producing step reported.
	Rows int64
}

// ScopeRegistry tracks the staging tables produced during the current run.
// Steps declare the tables they depend on; the orchestrator verifies them
// against this registry before executing the step. The registry is scoped to
// one run and passed explicitly, never shared as process-global state.
//
// The orchestrator runs steps sequentially, so no locking is needed.
type ScopeRegistry struct {
	entries map[string]ScopeEntry
}

// NewScopeRegistry creates an empty ScopeRegistry.
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{entries: make(map[string]ScopeEntry)}
}

// Register records that the given staging table now exists.
func (r *ScopeRegistry) Register(table, producedBy string, rows int64) {
	r.entries[table] = ScopeEntry{Table: table, ProducedBy: producedBy, Rows: rows}
}

// Has reports whether the given staging table has been produced.
func (r *ScopeRegistry) Has(table string) bool {
	_, ok := r.entries[table]
	return ok
}

// Lookup returns the entry for a staging table, if produced.
func (r *ScopeRegistry) Lookup(table string) (ScopeEntry, bool) {
	entry, ok := r.entries[table]
	return entry, ok
}

// Reset clears the registry for a fresh run.
func (r *ScopeRegistry) Reset() {
	r.entries = make(map[string]ScopeEntry)
}

// Tables returns the registered table names in sorted order.
func (r *ScopeRegistry) Tables() []string {
	names := make([]string, 0, len(r.entries))
	for t := range r.entries {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}
