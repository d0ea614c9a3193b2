package types

// OpUsage summarises how often one primitive was charged during an invocation
// and the total it contributed.
type OpUsage struct {
	Count uint64 `yaml:"count" json:"count"`
	Cost  uint64 `yaml:"cost" json:"cost"`
}

// Receipt reports the outcome of a single top-level invocation. It is produced
// once the invocation has committed or rolled back and carries the cost
// consumed either way.
type Receipt struct {
	ID        string             `yaml:"id" json:"id"`
	Method    string             `yaml:"method" json:"method"`
	Caller    Address            `yaml:"caller" json:"caller"`
	Cost      uint64             `yaml:"cost" json:"cost"`
	Breakdown map[string]OpUsage `yaml:"breakdown" json:"breakdown"`
	Reverted  bool               `yaml:"reverted" json:"reverted"`
	Err       error              `yaml:"-" json:"-"`
}

// Succeeded reports whether the invocation committed.
func (r *Receipt) Succeeded() bool {
	return r != nil && !r.Reverted
}
