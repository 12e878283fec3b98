package reporter

import (
	"time"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

/*
The report is a record of what a run did to the registry.
The report is a primitive for verifying, inventorying and auditing
reconciliation runs.
*/

// Line is the status of a single candidate.
type Line struct {
	Name          string            `json:"name"`
	AssetID       string            `json:"asset_id"`
	LinkKey       string            `json:"link_key"`
	Status        reconciler.Status `json:"status"`
	ApplicationID string            `json:"application_id,omitempty"`
	Error         string            `json:"error,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
}

// Report summarizes one run.
type Report struct {
	RunID         string    `json:"run_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	AssetType     string    `json:"asset_type"`
	NumFetched    int       `json:"num_fetched"`
	NumCandidates int       `json:"num_candidates"`
	Created       int       `json:"created"`
	Linked        int       `json:"linked"`
	CreateFailed  int       `json:"create_failed"`
	LinkFailed    int       `json:"link_failed"`
	Completed     bool      `json:"completed"`
	// Error is set when the run stopped on a fatal error.
	Error string `json:"error,omitempty"`
	Items []Line `json:"items"`
}

// NewLine converts a single outcome into its status line.
func NewLine(o reconciler.Outcome) Line {
	l := Line{
		Name:          o.Asset.Name,
		AssetID:       o.Asset.ID,
		LinkKey:       o.Asset.LinkKey(),
		Status:        o.Status,
		ApplicationID: o.ApplicationID,
		DurationMs:    o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		l.Error = o.Err.Error()
	}
	return l
}

// Summarize builds the report for a run. runErr is the fatal error, if any,
// returned alongside the result.
func Summarize(res *reconciler.Result, runErr error) Report {
	r := Report{
		Items: []Line{},
	}
	if res == nil {
		if runErr != nil {
			r.Error = runErr.Error()
		}
		return r
	}

	r.RunID = res.ID
	r.StartTime = res.StartedAt
	r.EndTime = res.EndedAt
	r.AssetType = res.AssetType
	r.NumFetched = res.Fetched
	r.NumCandidates = res.Candidates
	r.Completed = res.Completed
	if runErr != nil {
		r.Error = runErr.Error()
	}

	var counts reconciler.RunOutcome
	for _, o := range res.Items {
		counts = counts.Add(o)
		switch o.Status {
		case reconciler.StatusCreateFailed:
			r.CreateFailed++
		case reconciler.StatusLinkFailed:
			r.LinkFailed++
		}
		r.Items = append(r.Items, NewLine(o))
	}
	r.Created = counts.Created
	r.Linked = counts.Linked

	return r
}
