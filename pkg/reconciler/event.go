package reconciler

import "time"

// DefaultAssetType is the catalog label of assets that need an application.
const DefaultAssetType = "Veracode Application Profile"

// Asset is a catalog record. It is never mutated by this system.
type Asset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AssetTypeLabel string `json:"assetTypeLabel"`
	URI            string `json:"uri,omitempty"`
}

// LinkKey is the key used to address the asset when linking.
// It falls back to the asset ID when the URI is absent.
func (a Asset) LinkKey() string {
	if a.URI != "" {
		return a.URI
	}
	return a.ID
}

// Page is one page of catalog results.
type Page struct {
	Number  int
	Assets  []Asset
	HasMore bool
}

// Status is the terminal state of a candidate.
type Status string

const (
	StatusLinked       Status = "linked"
	StatusCreateFailed Status = "create_failed"
	StatusLinkFailed   Status = "link_failed"
)

// Outcome is the result of processing one candidate.
type Outcome struct {
	Asset         Asset         `json:"asset"`
	Status        Status        `json:"status"`
	ApplicationID string        `json:"application_id,omitempty"`
	Err           error         `json:"-"`
	Duration      time.Duration `json:"duration"`
}

// Created reports whether the application create step succeeded.
func (o Outcome) Created() bool {
	return o.Status == StatusLinked || o.Status == StatusLinkFailed
}

// Linked reports whether both steps succeeded.
func (o Outcome) Linked() bool {
	return o.Status == StatusLinked
}

// RunOutcome holds the aggregate counters of one invocation.
type RunOutcome struct {
	Created int `json:"created"`
	Linked  int `json:"linked"`
}

// Add folds a single outcome into the counters.
func (r RunOutcome) Add(o Outcome) RunOutcome {
	if o.Created() {
		r.Created++
	}
	if o.Linked() {
		r.Linked++
	}
	return r
}

// Result is everything a run produced.
type Result struct {
	ID         string     `json:"id"`
	AssetType  string     `json:"asset_type"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at"`
	Fetched    int        `json:"fetched"`
	Candidates int        `json:"candidates"`
	Outcome    RunOutcome `json:"outcome"`
	Items      []Outcome  `json:"items"`
	Completed  bool       `json:"completed"`
}
