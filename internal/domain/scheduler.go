package domain

import "time"

// ScheduledJob describes one registered recurring job.
type ScheduledJob struct {
	Key     string    `json:"id"`
	Name    string    `json:"name"`
	Spec    string    `json:"trigger"`
	NextRun time.Time `json:"next_run"`
}
