package events

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/runstr/trackd/types/workout"
)

// Snapshot is the per-tick view of an active session, emitted once per second
// while tracking. Subscribers get display state, not authority; the session
// owns the numbers.
type Snapshot struct {
	SessionID  string        `json:"sessionID"`
	State      string        `json:"state"`
	Distance   float64       `json:"distance"` // meters
	Elapsed    float64       `json:"elapsed"`  // seconds, pauses excluded
	Pace       float64       `json:"pace"`     // minutes per kilometer
	Stationary bool          `json:"stationary"`
	Split      workout.Split `json:"split"` // the in-progress split
}

// SnapshotFeed is emitted once per tick for the active session.
var SnapshotFeed = event.FeedOf[Snapshot]{}

// WorkoutFeed is emitted once per session, when it stops and its record is
// finalized. The workout will have been reconciled but not necessarily
// persisted yet.
var WorkoutFeed = event.FeedOf[*workout.Workout]{}

// SplitFeed is emitted for each finalized split as the session crosses
// a split boundary.
var SplitFeed = event.FeedOf[workout.Split]{}
