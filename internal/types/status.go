package types

import "time"

// StateKind is the coarse slideshow state exposed to the control plane.
type StateKind string

const (
	StateLoading       StateKind = "loading"
	StateDisplaying    StateKind = "displaying"
	StateTransitioning StateKind = "transitioning"
)

// Status is a point-in-time snapshot of the slideshow for status queries.
// It carries values, never references into the render loop.
type Status struct {
	State      StateKind `json:"state"`
	DisplayOn  bool      `json:"display_on"`
	AssetID    string    `json:"asset_id,omitempty"`
	Location   string    `json:"location,omitempty"`
	TakenAt    time.Time `json:"taken_at,omitempty"`
	Progress   float64   `json:"progress"`
	QueueReady int       `json:"queue_ready"`
	FramesSent uint64    `json:"frames_presented"`
}
