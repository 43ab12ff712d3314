package optimizer

// PartitionedTable maps one logical table to its partition-optimized
// physical counterpart and names the columns the partitioning is keyed on.
type PartitionedTable struct {
	Table           string `mapstructure:"table"`
	Partitioned     string `mapstructure:"partitioned"`
	PartitionKey    string `mapstructure:"partitionKey"`
	SubPartitionKey string `mapstructure:"subPartitionKey"`
	RangeKey        string `mapstructure:"rangeKey"`
}

// Catalog is the static mapping from logical table names to their
// partitioned counterparts. It is supplied as configuration, not hard-coded
// into the optimizer.
type Catalog struct {
	byTable map[string]PartitionedTable
}

// NewCatalog builds a catalog from its entries.
func NewCatalog(entries ...PartitionedTable) *Catalog {
	c := &Catalog{byTable: make(map[string]PartitionedTable, len(entries))}
	for _, e := range entries {
		if e.Table == "" || e.Partitioned == "" {
			continue
		}
		c.byTable[e.Table] = e
	}
	return c
}

// Lookup returns the partitioned counterpart for a logical table, if any.
func (c *Catalog) Lookup(table string) (PartitionedTable, bool) {
	entry, ok := c.byTable[table]
	return entry, ok
}

// DefaultCatalog covers the observation fact table, partitioned by program
// with site sub-partitions and an observation-time range key.
func DefaultCatalog() *Catalog {
	return NewCatalog(PartitionedTable{
		Table:           "observations",
		Partitioned:     "observations_partitioned",
		PartitionKey:    "program_id",
		SubPartitionKey: "site_id",
		RangeKey:        "observed_at",
	})
}
