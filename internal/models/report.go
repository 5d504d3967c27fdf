package models

import "fmt"

// ImportReport is the result of one file import or remote fetch
type ImportReport struct {
	Imported     int      `json:"imported"`
	Duplicates   int      `json:"duplicates"`
	DuplicateIDs []string `json:"duplicateIds"`
	Skipped      int      `json:"skipped"`
	Dialect      string   `json:"dialect,omitempty"`
}

// ShippingReconciliationReport is the result of one shipping manifest import
type ShippingReconciliationReport struct {
	Updated      int      `json:"updated"`
	NotFound     []string `json:"notFound"`
	FuzzyMatched []string `json:"fuzzyMatched"`
	Ambiguous    []string `json:"ambiguous"`
}

// NewShippingReconciliationReport returns a report with non-nil lists so it encodes as [] rather than null
func NewShippingReconciliationReport() *ShippingReconciliationReport {
	return &ShippingReconciliationReport{
		NotFound:     []string{},
		FuzzyMatched: []string{},
		Ambiguous:    []string{},
	}
}

// RowError describes a single row or order that could not be processed.
// It is recorded in a report and never aborts the batch.
type RowError struct {
	Ref    string
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Ref, e.Reason)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// BatchInsertResult is what the order store reports for one batch insert
type BatchInsertResult struct {
	Inserted     int
	DuplicateIDs []string
}
