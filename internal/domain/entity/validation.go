package entity

import (
	"fmt"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type ValidationIssue struct {
	Severity Severity `json:"severity" bson:"severity"`
	Check    string   `json:"check" bson:"check"`
	File     string   `json:"file,omitempty" bson:"file,omitempty"`
	Message  string   `json:"message" bson:"message"`
	Line     int      `json:"line,omitempty" bson:"line,omitempty"`
}

func (i ValidationIssue) String() string {
	if i.File == "" {
		return fmt.Sprintf("[%s] %s", i.Check, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Check, i.File, i.Message)
}

type ValidationReport struct {
	Passed    bool              `json:"passed" bson:"passed"`
	Issues    []ValidationIssue `json:"issues" bson:"issues"`
	CheckedAt time.Time         `json:"checked_at" bson:"checked_at"`
}

func NewValidationReport() *ValidationReport {
	return &ValidationReport{Passed: true, CheckedAt: time.Now()}
}

func (r *ValidationReport) AddError(check, file, msg string) {
	r.Issues = append(r.Issues, ValidationIssue{Severity: SeverityError, Check: check, File: file, Message: msg})
	r.Passed = false
}

func (r *ValidationReport) AddWarning(check, file, msg string) {
	r.Issues = append(r.Issues, ValidationIssue{Severity: SeverityWarning, Check: check, File: file, Message: msg})
}

func (r *ValidationReport) Errors() []ValidationIssue {
	return r.filter(SeverityError)
}

func (r *ValidationReport) Warnings() []ValidationIssue {
	return r.filter(SeverityWarning)
}

func (r *ValidationReport) filter(sev Severity) []ValidationIssue {
	var out []ValidationIssue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}
