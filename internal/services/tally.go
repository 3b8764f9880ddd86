package services

// Tally accumulates run-level counters. A Tally is threaded explicitly
// through each scope (parcel, municipality, run) and merged upward rather
// than kept as shared global state, so a concurrent caller only has to
// serialize the final merges.
type Tally struct {
	Processed      int `json:"processed"`
	Created        int `json:"created"`
	Changed        int `json:"changed"`
	Orphans        int `json:"orphans"`
	Municipalities int `json:"municipalities"`
	Errors         int `json:"errors"`
}

// Merge folds another tally into this one.
func (t *Tally) Merge(other Tally) {
	t.Processed += other.Processed
	t.Created += other.Created
	t.Changed += other.Changed
	t.Orphans += other.Orphans
	t.Municipalities += other.Municipalities
	t.Errors += other.Errors
}
