package domain

import "time"

// Import statuses published on the event stream.
const (
	ImportStatusImported = "imported"
	ImportStatusFailed   = "failed"
)

// ImportEvent announces the outcome of one file import to downstream
// consumers (the website's cache invalidator and the GIS refresh job).
type ImportEvent struct {
	Recordnum  int       `json:"recordnum"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	Warnings   int       `json:"warnings"`
	ImportedAt time.Time `json:"imported_at"`
}
