package domain

import "strings"

// Option selects how the pipeline narrows the plans it extracts.
type Option string

const (
	OptionAutoRead Option = "Auto-Read"
	OptionSearch   Option = "Search"
	OptionAllPlans Option = "All Plans"
)

// ValidOptions lists every accepted processing option.
var ValidOptions = map[Option]bool{
	OptionAutoRead: true,
	OptionSearch:   true,
	OptionAllPlans: true,
}

// LOC is a line-of-coverage tag as emitted by the classifier.
type LOC = string

const (
	LOCMedical LOC = "Medical"
	LOCDental  LOC = "Dental"
	LOCVision  LOC = "Vision"
	LOCLifeADD LOC = "LifeADD"
	LOCSTD     LOC = "STD"
	LOCLTD     LOC = "LTD"
	LOCVL      LOC = "VL"
	LOCVSTD    LOC = "VSTD"
	LOCVLTD    LOC = "VLTD"
	LOCVA      LOC = "VA"
	LOCVHI     LOC = "VHI"
	LOCVCI     LOC = "VCI"
)

// KnownLOCs is the closed set of line-of-coverage tags in canonical order.
var KnownLOCs = []LOC{
	LOCMedical, LOCDental, LOCVision, LOCLifeADD, LOCSTD, LOCLTD,
	LOCVL, LOCVSTD, LOCVLTD, LOCVA, LOCVHI, LOCVCI,
}

// IsKnownLOC reports whether loc belongs to the closed set.
func IsKnownLOC(loc string) bool {
	for _, k := range KnownLOCs {
		if k == loc {
			return true
		}
	}
	return false
}

// JobStatus tracks an async job through the in-process registry.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// NormalizeDashes replaces en and em dashes with hyphen-minus and trims space.
func NormalizeDashes(s string) string {
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	return strings.TrimSpace(s)
}
