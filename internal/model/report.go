package model

import "time"

// RunReport summarizes one batch run of the pipeline
type RunReport struct {
	RunID      string    `json:"run_id"`      // Unique run identifier
	StartedAt  time.Time `json:"started_at"`  // When the run began
	FinishedAt time.Time `json:"finished_at"` // When the run completed

	Documents     int `json:"documents"`      // Documents found in the source
	Organized     int `json:"organized"`      // Documents extracted, matched, and relocated
	Skipped       int `json:"skipped"`        // Documents left in the source for a future run
	ClaimsCreated int `json:"claims_created"` // New claim clusters synthesized this run
	ClaimsMatched int `json:"claims_matched"` // Records merged into pre-existing clusters

	Outcomes []DocumentOutcome `json:"outcomes,omitempty"` // Per-document detail
}

// OutcomeStatus describes what happened to one document
type OutcomeStatus string

const (
	OutcomeOrganized OutcomeStatus = "organized" // Extracted, matched, moved, reported
	OutcomeSkipped   OutcomeStatus = "skipped"   // Failed at some stage, left in source
)

// DocumentOutcome records the fate of a single source document
type DocumentOutcome struct {
	SourceName string        `json:"source_name"`
	Status     OutcomeStatus `json:"status"`
	ClaimLabel string        `json:"claim_label,omitempty"` // Assigned cluster, when organized
	NewClaim   bool          `json:"new_claim,omitempty"`   // Whether the cluster was created for this record
	Error      string        `json:"error,omitempty"`       // Failure detail, when skipped
}
