package services

import (
	"errors"
	"strings"
)

// ErrorDetails flattens a stage error into the uniform fields the workflow
// manager logs and the API reports.
type ErrorDetails struct {
	Kind       FailureKind
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

// Details extracts structured failure information from any error. StageError
// values in the chain contribute their fields; everything else falls back to
// marker classification and the raw error string.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{
		Kind:    Kind(err),
		Message: strings.TrimSpace(err.Error()),
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		details.Operation = stageErr.Operation
		details.Code = stageErr.Code
		details.Hint = stageErr.Hint
		details.DetailPath = stageErr.DetailPath
		details.Cause = stageErr.Err
		if msg := strings.TrimSpace(stageErr.Message); msg != "" {
			details.Message = msg
			if stageErr.Err != nil {
				details.Message = msg + ": " + strings.TrimSpace(stageErr.Err.Error())
			}
		} else if stageErr.Err != nil {
			details.Message = strings.TrimSpace(stageErr.Err.Error())
		}
	}
	return details
}
