package models

// ProgressTotals summarizes entity counters for one run.
type ProgressTotals struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProgressUpdate is published to live subscribers after every persisted
// phase transition, in persistence order per task id.
type ProgressUpdate struct {
	TaskID        string         `json:"task_id"`
	IntegrationID uint           `json:"integration_id"`
	Status        SyncRunStatus  `json:"status"`
	Percentage    int            `json:"percentage"`
	Totals        ProgressTotals `json:"totals"`
	Message       string         `json:"message"`
	IsTerminal    bool           `json:"is_terminal"`
}

func (r *SyncRunEntity) Snapshot() ProgressUpdate {
	return ProgressUpdate{
		TaskID:        r.TaskID,
		IntegrationID: r.IntegrationID,
		Status:        r.Status,
		Percentage:    r.Percentage,
		Totals: ProgressTotals{
			Total:     r.TotalCount,
			Processed: r.ProcessedCount,
			Succeeded: r.SucceededCount,
			Failed:    r.FailedCount,
		},
		Message:    r.Message,
		IsTerminal: r.Status.IsTerminal(),
	}
}
