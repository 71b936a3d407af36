// Package errors provides structured error handling for the workbench engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Project and configuration errors
//   - 2XX: Storage errors (artifact files, index file)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryProject indicates project lifecycle or configuration errors.
	CategoryProject Category = "PROJECT"
	// CategoryStorage indicates artifact file or index file errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Project errors (100-199)
	ErrCodeNotOpen       = "ERR_101_NO_PROJECT_OPEN"
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeNotFound           = "ERR_201_ARTIFACT_NOT_FOUND"
	ErrCodeStorageIO          = "ERR_202_STORAGE_IO"
	ErrCodeMirrorWrite        = "ERR_203_MIRROR_WRITE"
	ErrCodeIndexUninitialized = "ERR_204_INDEX_UNINITIALIZED"
	ErrCodeParse              = "ERR_205_PARSE_FAILED"
	ErrCodeCorruptIndex       = "ERR_206_CORRUPT_INDEX"
	ErrCodeIndexLocked        = "ERR_207_INDEX_LOCKED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_NO_PROJECT_OPEN"
	switch code[4] {
	case '1':
		return CategoryProject
	case '2':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeMirrorWrite, ErrCodeParse:
		// The document stays authoritative; a stale mirror or one skipped file is tolerated.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	return code == ErrCodeIndexLocked
}
