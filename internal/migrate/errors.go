package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a record could not be migrated.
type ErrorKind string

const (
	KindConfig          ErrorKind = "config"
	KindDataConsistency ErrorKind = "data"
	KindValidation      ErrorKind = "validation"
	KindTransfer        ErrorKind = "transfer"
	KindSource          ErrorKind = "source"
	KindSubmit          ErrorKind = "submit"
)

// ConfigError reports a source identity without a destination mapping.
type ConfigError struct {
	Identity string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bugzilla user %q not found in user mappings, please add them before continuing", e.Identity)
}

// DataConsistencyError reports a comment that references an attachment the
// record does not contain.
type DataConsistencyError struct {
	AttachmentID int
	CommentText  string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("attachment %d referenced in comment %q does not exist", e.AttachmentID, e.CommentText)
}

// ValidationError reports a required field left empty after composition.
type ValidationError struct {
	Resource string
	Field    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing value for required %s field: %s", e.Resource, e.Field)
}

// TransferError reports an attachment that could not be moved to the
// destination.
type TransferError struct {
	AttachmentID int
	Filename     string
	Err          error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to transfer attachment %d (%s): %v", e.AttachmentID, e.Filename, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// sourceError reports a record that could not be read from the source.
type sourceError struct {
	BugID int
	Err   error
}

func (e *sourceError) Error() string {
	return fmt.Sprintf("failed to read bug %d: %v", e.BugID, e.Err)
}

func (e *sourceError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err. Errors from the destination that are
// not one of the tagged kinds are reported as KindSubmit.
func KindOf(err error) ErrorKind {
	var (
		cfgErr  *ConfigError
		dataErr *DataConsistencyError
		valErr  *ValidationError
		xferErr *TransferError
		srcErr  *sourceError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &dataErr):
		return KindDataConsistency
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &xferErr):
		return KindTransfer
	case errors.As(err, &srcErr):
		return KindSource
	default:
		return KindSubmit
	}
}

// ParseKinds parses a list of kind names such as "config,transfer".
func ParseKinds(names []string) (map[ErrorKind]bool, error) {
	kinds := make(map[ErrorKind]bool, len(names))
	for _, name := range names {
		k := ErrorKind(strings.ToLower(strings.TrimSpace(name)))
		switch k {
		case KindConfig, KindDataConsistency, KindValidation, KindTransfer, KindSource, KindSubmit:
			kinds[k] = true
		case "":
		default:
			return nil, fmt.Errorf("unknown error kind %q", name)
		}
	}
	return kinds, nil
}
