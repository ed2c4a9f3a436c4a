package models

import "time"

// Status enumerates the lifecycle states a machine can be in.
type Status string

const (
	StatusFree      Status = "free"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// Machine is a single tracked production machine. The pair (Location, ID)
// uniquely identifies it and never changes after creation.
type Machine struct {
	ID       int    `bson:"machine_id" json:"id"`
	Location string `bson:"location" json:"location"`
	Name     string `bson:"name" json:"name"`

	Status Status `bson:"status" json:"status"`

	TargetQty   int `bson:"target_qty" json:"target_qty"`
	ProducedQty int `bson:"produced_qty" json:"produced_qty"`

	// SecondsPerMeter is the production rate. Zero means the machine
	// cannot auto-advance.
	SecondsPerMeter int        `bson:"seconds_per_meter,omitempty" json:"seconds_per_meter,omitempty"`
	LastTickTime    *time.Time `bson:"last_tick_time,omitempty" json:"last_tick_time,omitempty"`

	// Advisory fields sourced from the ERP feed. Displayed, never enforced.
	WorkOrder string `bson:"work_order,omitempty" json:"work_order,omitempty"`
	PipeSize  string `bson:"pipe_size,omitempty" json:"pipe_size,omitempty"`
}

// IsRunning reports whether the machine is currently producing.
func (m Machine) IsRunning() bool {
	return m.Status == StatusRunning
}

// IsCompleted reports whether the machine has hit its target.
func (m Machine) IsCompleted() bool {
	return m.TargetQty > 0 && m.ProducedQty >= m.TargetQty
}
