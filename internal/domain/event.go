package domain

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// EntryEvent describes a change made to an entry during a run.
type EntryEvent struct {
	Action string
	Source string
	RunID  string
	Entry  Entry
}
