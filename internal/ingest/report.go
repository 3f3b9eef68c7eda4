package ingest

import "time"

// Status is the outcome of ingesting one file.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// FileResult describes one file's ingestion.
type FileResult struct {
	Path       string         `json:"path" yaml:"path"`
	SourceID   string         `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Status     Status         `json:"status" yaml:"status"`
	Units      int            `json:"units,omitempty" yaml:"units,omitempty"`
	Categories map[string]int `json:"categories,omitempty" yaml:"categories,omitempty"`
	Replaced   bool           `json:"replaced,omitempty" yaml:"replaced,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the failure cause for StatusFailed.
	Err error `json:"-" yaml:"-"`
}

// Report summarizes one Ingest call. Files keeps input order.
type Report struct {
	Files    []FileResult  `json:"files" yaml:"files"`
	Ingested int           `json:"ingested" yaml:"ingested"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Failed   int           `json:"failed" yaml:"failed"`
	Units    int           `json:"units" yaml:"units"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Errors returns the failure causes in file order.
func (r Report) Errors() []error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

func (r *Report) tally() {
	r.Ingested, r.Skipped, r.Failed, r.Units = 0, 0, 0, 0
	for _, f := range r.Files {
		switch f.Status {
		case StatusIngested:
			r.Ingested++
			r.Units += f.Units
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		}
	}
}
