package domain

import "time"

type ItemStatus string

const (
	ItemIndexed ItemStatus = "indexed"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// ItemOutcome records what happened to a single event of a batch.
// ErrorKind is a short machine-readable kind ("transient_io",
// "dimension_mismatch", ...) set only for failed items; Reason explains
// skips in plain words.
type ItemOutcome struct {
	Bucket     string     `json:"bucket"`
	Key        string     `json:"key"`
	Status     ItemStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Attempts   int        `json:"attempts"`
	FinishedAt time.Time  `json:"finished_at"`
}

// ProcessingReport enumerates the per-key outcome of one notification
// batch. No delivered event is missing from Items.
type ProcessingReport struct {
	Items []ItemOutcome `json:"items"`
}

func (r ProcessingReport) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func (r ProcessingReport) Indexed() int { return r.Count(ItemIndexed) }
func (r ProcessingReport) Skipped() int { return r.Count(ItemSkipped) }
func (r ProcessingReport) Failed() int  { return r.Count(ItemFailed) }
