package domain

// JoinKind enumerates supported join kinds.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// JoinStep is one hop in a relationship path: join ToTable onto FromTable
// with ToTable.ForeignField = FromTable.JoinField.
type JoinStep struct {
	FromTable    string   `json:"fromTable"`
	ToTable      string   `json:"toTable"`
	JoinField    string   `json:"joinField"`
	ForeignField string   `json:"foreignField"`
	Kind         JoinKind `json:"kind,omitempty"`
}

// RelationshipPath is an ordered chain of joins connecting two entities.
type RelationshipPath []JoinStep

// Validate enforces the path invariants: contiguity (each step starts where
// the previous one ended) and acyclicity.
func (p RelationshipPath) Validate() error {
	if len(p) == 0 {
		return nil
	}

	seen := map[string]struct{}{p[0].FromTable: {}}
	for i, step := range p {
		if step.FromTable == "" || step.ToTable == "" {
			return Configurationf("relationship step %d is missing a table", i)
		}
		if step.JoinField == "" || step.ForeignField == "" {
			return Configurationf("relationship step %d is missing a join field", i)
		}
		if step.Kind != "" && step.Kind != JoinInner && step.Kind != JoinLeft {
			return Configurationf("relationship step %d has unknown join kind %q", i, step.Kind)
		}
		if i > 0 && p[i-1].ToTable != step.FromTable {
			return Configurationf("relationship path is not contiguous at step %d: %s does not follow %s",
				i, step.FromTable, p[i-1].ToTable)
		}
		if _, dup := seen[step.ToTable]; dup {
			return Configurationf("relationship path revisits table %q", step.ToTable)
		}
		seen[step.ToTable] = struct{}{}
	}
	return nil
}

// Target returns the final table the path reaches.
func (p RelationshipPath) Target() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].ToTable
}
