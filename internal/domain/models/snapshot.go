package models

// MachineView is the read-only representation of a machine pushed to
// dashboard viewers.
type MachineView struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Target    int    `json:"target"`
	Produced  int    `json:"produced"`
	Remaining int    `json:"remaining"`
	WorkOrder string `json:"work_order,omitempty"`
	PipeSize  string `json:"pipe_size,omitempty"`
}

// Snapshot maps each location to its machines, ordered by machine id.
// It is a full, consistent copy of the fleet at one instant.
type Snapshot map[string][]MachineView

// BuildSnapshot groups the provided machines by location. The input is
// expected to already be ordered by location then id, which keeps each
// location's slice ordered by id.
func BuildSnapshot(machines []Machine) Snapshot {
	snap := make(Snapshot)
	for _, m := range machines {
		remaining := m.TargetQty - m.ProducedQty
		if remaining < 0 {
			remaining = 0
		}
		snap[m.Location] = append(snap[m.Location], MachineView{
			ID:        m.ID,
			Name:      m.Name,
			Status:    m.Status,
			Target:    m.TargetQty,
			Produced:  m.ProducedQty,
			Remaining: remaining,
			WorkOrder: m.WorkOrder,
			PipeSize:  m.PipeSize,
		})
	}
	return snap
}
