package models

// Term is one RDF term inside a delta notification.
type Term struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Triple is one inserted or deleted fact.
type Triple struct {
	Subject   Term `json:"subject"`
	Predicate Term `json:"predicate"`
	Object    Term `json:"object"`
}

// Changeset is one transaction-level change notification.
type Changeset struct {
	Inserts []Triple `json:"inserts"`
	Deletes []Triple `json:"deletes"`
}

// DeltaBatch is the body posted by the notifier: a list of changesets.
// Only inserts drive the state machine.
type DeltaBatch []Changeset

// Inserts flattens all inserted triples across the batch.
func (b DeltaBatch) Inserts() []Triple {
	var out []Triple
	for _, cs := range b {
		out = append(out, cs.Inserts...)
	}
	return out
}
