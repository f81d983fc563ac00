package domain

import (
	"fmt"
	"strings"
	"time"
)

// Job carries the immutable request parameters of one pipeline run.
type Job struct {
	JobID       string `json:"job_id"`
	BrokerID    string `json:"broker_id"`
	EmployerID  string `json:"employer_id"`
	Option      Option `json:"option"`
	PlanName    string `json:"plan_name,omitempty"`
	EnableCache bool   `json:"prompt_cache"`
}

// Validate checks the option and the Search plan-name requirement.
func (j *Job) Validate() error {
	if !ValidOptions[j.Option] {
		return fmt.Errorf("%w: option must be one of Auto-Read, Search, All Plans", ErrInvalidArgument)
	}
	if j.Option == OptionSearch && strings.TrimSpace(j.PlanName) == "" {
		return fmt.Errorf("%w: plan_name is required when option == 'Search'", ErrInvalidArgument)
	}
	return nil
}

// PlanEntry is one plan listed under a line of coverage.
type PlanEntry struct {
	Name  string `json:"plan_name"`
	Pages []int  `json:"pages"`
}

// Listing maps LOC to its ordered plan entries, preserving LOC insertion order.
// Entries are unique per LOC by trimmed plan name.
type Listing struct {
	locs  []LOC
	plans map[LOC][]PlanEntry
}

// NewListing returns an empty listing.
func NewListing() *Listing {
	return &Listing{plans: make(map[LOC][]PlanEntry)}
}

// Add appends an entry under loc unless a plan with the same trimmed name is
// already present. It reports whether the entry was added.
func (l *Listing) Add(loc LOC, entry PlanEntry) bool {
	key := strings.TrimSpace(entry.Name)
	if key == "" {
		return false
	}
	for _, e := range l.plans[loc] {
		if strings.TrimSpace(e.Name) == key {
			return false
		}
	}
	l.Touch(loc)
	l.plans[loc] = append(l.plans[loc], entry)
	return true
}

// Touch registers loc with no entries if it is not present yet.
func (l *Listing) Touch(loc LOC) {
	if _, ok := l.plans[loc]; ok {
		return
	}
	l.locs = append(l.locs, loc)
	l.plans[loc] = nil
}

// LOCs returns the lines of coverage in insertion order.
func (l *Listing) LOCs() []LOC {
	out := make([]LOC, len(l.locs))
	copy(out, l.locs)
	return out
}

// Plans returns the entries listed under loc.
func (l *Listing) Plans(loc LOC) []PlanEntry {
	return l.plans[loc]
}

// Has reports whether loc is present, even with no entries.
func (l *Listing) Has(loc LOC) bool {
	_, ok := l.plans[loc]
	return ok
}

// Count returns the total number of entries across all LOCs.
func (l *Listing) Count() int {
	n := 0
	for _, loc := range l.locs {
		n += len(l.plans[loc])
	}
	return n
}

// Names flattens plan names across LOCs in listing order.
func (l *Listing) Names() []string {
	var out []string
	for _, loc := range l.locs {
		for _, e := range l.plans[loc] {
			out = append(out, e.Name)
		}
	}
	return out
}

// Find returns the first entry whose dash-normalized name equals name.
func (l *Listing) Find(name string) (LOC, PlanEntry, bool) {
	want := NormalizeDashes(name)
	for _, loc := range l.locs {
		for _, e := range l.plans[loc] {
			if NormalizeDashes(e.Name) == want {
				return loc, e, true
			}
		}
	}
	return "", PlanEntry{}, false
}

// Merge adds every entry of other, keeping first occurrences.
func (l *Listing) Merge(other *Listing) {
	if other == nil {
		return
	}
	for _, loc := range other.locs {
		for _, e := range other.plans[loc] {
			l.Add(loc, e)
		}
	}
}

// PlanResult is the extraction output of a single plan.
type PlanResult struct {
	LOC      string `json:"loc"`
	PlanName string `json:"plan_name"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
}

// Result is the aggregated pipeline response.
type Result struct {
	JobID                        string       `json:"job_id"`
	BrokerID                     string       `json:"broker_id"`
	EmployerID                   string       `json:"employer_id"`
	Message                      string       `json:"message"`
	ClassificationOutput         string       `json:"classification_output"`
	KPExtractOutput              string       `json:"kp_extract_output"`
	PlanNameIdentificationOutput string       `json:"plan_name_identification_output"`
	Plans                        []PlanResult `json:"plans"`
}

// NewResult returns a result for job with the given message and no plans.
func NewResult(job *Job, message string) *Result {
	return &Result{
		JobID:      job.JobID,
		BrokerID:   job.BrokerID,
		EmployerID: job.EmployerID,
		Message:    message,
		Plans:      []PlanResult{},
	}
}

// JobRecord is the registry entry of an async job.
type JobRecord struct {
	JobID      string     `json:"job_id"`
	Status     JobStatus  `json:"status"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
