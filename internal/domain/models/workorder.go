package models

// WorkOrder is an active work order as reported by the ERP feed. All of it
// is advisory from the fleet's perspective.
type WorkOrder struct {
	Name        string  `json:"name"`
	Qty         float64 `json:"qty"`
	ProducedQty float64 `json:"produced_qty"`
	Status      string  `json:"status"`
	MachineID   int     `json:"custom_machine_id"`
	PipeSize    string  `json:"custom_pipe_size"`
	Location    string  `json:"custom_location"`
}
