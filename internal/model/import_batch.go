package model

import "time"

// ImportBatch records the provenance of one import run. Transactions keep
// their batch id for auditability; the batch row keeps the run's totals.
type ImportBatch struct {
	CreatedAt         time.Time
	ID                string
	AccountID         string
	Imported          int
	DuplicatesSkipped int
	Upgraded          int
}
