package dumper

import (
	"fmt"
	"time"
)

type State int

const (
	Init State = iota
	Paging
	Prefetching
	Resolving
	Building
	Writing
	Done
	Aborted
)

var stateNames = [...]string{"INIT", "PAGING", "PREFETCHING", "RESOLVING", "BUILDING", "WRITING", "DONE", "ABORTED"}

func (s State) String() string {
	if s < Init || s > Aborted {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions will happen.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

const (
	SkippedNotFound       string = "not-found"
	SkippedRedirectFilter string = "redirect-filter"
	SkippedInvalid        string = "invalid-content"
)

// maxSkippedIDs bounds the ids kept per skip reason. Counts are always exact.
const maxSkippedIDs int = 1000

type Summary struct {
	RunID    string    `json:"runId"`
	State    State     `json:"state"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`

	Batches  int            `json:"batches"`
	Written  int            `json:"written"`
	Fallback int            `json:"fallbackValues"`
	Skipped  map[string]int `json:"skipped"`
	// SkippedIDs holds the first ids skipped for every reason.
	SkippedIDs map[string][]string `json:"skippedIds,omitempty"`

	// LastConfirmed is the last id whose statements were flushed to the sink. A
	// restart after this id continues the dump without gaps. Bytes the sink holds
	// past this entity belong to an unconfirmed entity and are to be discarded.
	LastConfirmed string `json:"lastConfirmed,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (s Summary) Succeeded() bool {
	return s.State == Done
}

func (s *Summary) skip(reason, id string) {
	s.Skipped[reason]++
	if len(s.SkippedIDs[reason]) < maxSkippedIDs {
		s.SkippedIDs[reason] = append(s.SkippedIDs[reason], id)
	}
}

func (s Summary) clone() Summary {
	c := s

	c.Skipped = make(map[string]int, len(s.Skipped))
	for k, v := range s.Skipped {
		c.Skipped[k] = v
	}

	c.SkippedIDs = make(map[string][]string, len(s.SkippedIDs))
	for k, v := range s.SkippedIDs {
		c.SkippedIDs[k] = append([]string(nil), v...)
	}

	return c
}
