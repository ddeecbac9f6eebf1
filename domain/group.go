package domain

// GroupID identifies a group. Ids are dense, assigned from 0 at creation,
// never reused and never removed.
type GroupID uint64

// Group is a named, ordered list of members.
// Duplicates are allowed; fan-out follows storage order.
type Group struct {
	ID      GroupID
	Name    string
	Members []Principal
}
