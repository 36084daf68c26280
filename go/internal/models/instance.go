package models

import "time"

// InstanceStatus is the lifecycle state of a challenge container.
type InstanceStatus string

const (
	InstanceQueueing InstanceStatus = "Queueing"
	InstanceStarting InstanceStatus = "Starting"
	InstanceRunning  InstanceStatus = "Running"
	InstanceStopped  InstanceStatus = "Stopped"
)

// Transitional reports whether the instance is still being brought up.
func (s InstanceStatus) Transitional() bool {
	return s == InstanceQueueing || s == InstanceStarting
}

// Endpoint is one network address exposed by an instance.
type Endpoint struct {
	Label string `json:"label"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
}

// ChallengeInstance is the sandbox backing one challenge attempt for a team.
type ChallengeInstance struct {
	ChallengeID int            `json:"challenge_id"`
	Status      InstanceStatus `json:"status"`
	Endpoints   []Endpoint     `json:"endpoints"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c ChallengeInstance) Clone() ChallengeInstance {
	out := c
	if c.Endpoints != nil {
		out.Endpoints = append([]Endpoint(nil), c.Endpoints...)
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// StoppedInstance returns the empty, stopped view for a challenge.
func StoppedInstance(challengeID int) ChallengeInstance {
	return ChallengeInstance{
		ChallengeID: challengeID,
		Status:      InstanceStopped,
		Endpoints:   []Endpoint{},
	}
}
