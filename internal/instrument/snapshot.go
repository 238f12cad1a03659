package instrument

import "time"

// Snapshot is a point-in-time, serializable capture of instrument state,
// produced on demand by Base.Snapshot and never cached.
//
// The JSON field names and nesting are the persisted interchange format
// for reproducibility logs; downstream tooling stores and diffs these
// documents, so the shape must remain stable.
type Snapshot struct {
	Name       string                       `json:"name"`
	Label      string                       `json:"label,omitempty"`
	Metadata   map[string]any               `json:"metadata,omitempty"`
	Parameters map[string]ParameterSnapshot `json:"parameters"`
	Submodules map[string]*Snapshot         `json:"submodules,omitempty"`
}

// ParameterSnapshot captures one parameter's last known state. Value is
// null and TS is null for parameters that have never been read or set
// (write-only parameters before their first Set, or unreadable hardware);
// the null marker stands in rather than failing the whole snapshot.
type ParameterSnapshot struct {
	Value    any        `json:"value"`
	Unit     string     `json:"unit,omitempty"`
	Label    string     `json:"label,omitempty"`
	RawValue string     `json:"raw_value,omitempty"`
	TS       *time.Time `json:"ts"`
}
