package types

import "github.com/holiman/uint256"

// PlayerRecord is the ledger entry kept per registered identity. Player mirrors
// the key the record is stored under and is only populated by layouts that
// persist it.
type PlayerRecord struct {
	Player Address
	Active bool
	Score  *uint256.Int
}

// Copy returns a deep copy of the record.
func (r PlayerRecord) Copy() PlayerRecord {
	out := r
	if r.Score != nil {
		out.Score = new(uint256.Int).Set(r.Score)
	} else {
		out.Score = new(uint256.Int)
	}
	return out
}
