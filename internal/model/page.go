package model

// PageResult is the transient output of fetching and parsing one listing
// page: the candidates found plus the pagination continuation signal.
type PageResult struct {
	Leads       []CandidateLead
	HasNextPage bool
}
