// Package errors defines the coded errors unref reports for failures that
// stop a codebase or a whole run.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable failure class.
type ErrorCode string

const (
	IndexMissing     ErrorCode = "INDEX_MISSING"
	IndexInvalid     ErrorCode = "INDEX_INVALID"
	ManifestInvalid  ErrorCode = "MANIFEST_INVALID"
	BaselineInvalid  ErrorCode = "BASELINE_INVALID"
	ConfigInvalid    ErrorCode = "CONFIG_INVALID"
	UnsupportedInput ErrorCode = "UNSUPPORTED_INPUT" // not an index, directory or manifest
	ExportFailed     ErrorCode = "EXPORT_FAILED"
	InternalError    ErrorCode = "INTERNAL_ERROR"
)

type FixActionType string

const (
	RunCommand FixActionType = "run-command"
	OpenDocs   FixActionType = "open-docs"
)

// FixAction is a hint shown with an error.
type FixAction struct {
	Type        FixActionType `json:"type"`
	Description string        `json:"description"`
	Command     string        `json:"command,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Hint renders the action as one line: "description: command".
func (a FixAction) Hint() string {
	switch {
	case a.Command != "":
		return a.Description + ": " + a.Command
	case a.URL != "":
		return a.Description + ": " + a.URL
	default:
		return a.Description
	}
}

// UnrefError carries a code and hints next to the message and the cause.
type UnrefError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

func NewUnrefError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *UnrefError {
	return &UnrefError{
		Code:           code,
		Message:        message,
		SuggestedFixes: suggestedFixes,
		cause:          cause,
	}
}

func (e *UnrefError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *UnrefError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first UnrefError in err's chain, or
// InternalError if there is none.
func CodeOf(err error) ErrorCode {
	var ue *UnrefError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return InternalError
}

var suggestedFixes = map[ErrorCode][]FixAction{
	IndexMissing: {
		{Type: RunCommand, Description: "Generate a SCIP index for a .NET solution", Command: "scip-dotnet index"},
		{Type: OpenDocs, Description: "Find the SCIP indexer for your language", URL: "https://github.com/sourcegraph/scip#scip-code-intelligence-protocol"},
	},
	IndexInvalid: {
		{Type: RunCommand, Description: "Inspect the index with the scip CLI", Command: "scip print index.scip"},
	},
	ManifestInvalid: {
		{Type: OpenDocs, Description: "Each [[project]] entry needs name, root and index"},
	},
	ConfigInvalid: {
		{Type: RunCommand, Description: "Show the effective configuration", Command: "unref config"},
	},
}

// GetSuggestedFixes returns the hints for code, or nil.
func GetSuggestedFixes(code ErrorCode) []FixAction {
	return suggestedFixes[code]
}
