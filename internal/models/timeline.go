package models

import "time"

// TimelinePoint represents a single compact point in a target timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail carries extra information for problematic buckets.
type TimelineDetail struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state,omitempty"`
}

// TargetTimeline aggregates timeline points for a single target.
type TargetTimeline struct {
	TargetID string          `json:"target_id"`
	Column   string          `json:"column"`
	Kind     TargetKind      `json:"kind"`
	Timeline []TimelinePoint `json:"timeline"`
}
