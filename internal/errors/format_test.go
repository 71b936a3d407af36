package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := NotFoundError("UC007", nil)

	result := FormatForUser(err)

	assert.Contains(t, result, "artifact UC007 not found")
	assert.Contains(t, result, "[ERR_201_ARTIFACT_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	result := FormatForUser(NotOpenError())

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "baw init")
}

func TestFormatForUser_StandardAndNil(t *testing.T) {
	assert.Equal(t, "something went wrong", FormatForUser(errors.New("something went wrong")))
	assert.Empty(t, FormatForUser(nil))
}

func TestFormatJSON_BasicError(t *testing.T) {
	err := StorageError("write failed", nil).
		WithDetail("path", "Artifacts/BR001.json").
		WithSuggestion("Check directory permissions")

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeStorageIO, result["code"])
	assert.Equal(t, "write failed", result["message"])
	assert.Equal(t, string(CategoryStorage), result["category"])
	assert.Equal(t, string(SeverityError), result["severity"])
	assert.Equal(t, "Check directory permissions", result["suggestion"])

	details, ok := result["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Artifacts/BR001.json", details["path"])
}

func TestFormatJSON_StandardError(t *testing.T) {
	data, jsonErr := FormatJSON(errors.New("generic error"))
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, ErrCodeInternal, result["code"])
	assert.Equal(t, "generic error", result["message"])
}

func TestFormatJSON_NilError(t *testing.T) {
	data, err := FormatJSON(nil)

	assert.NoError(t, err)
	assert.Equal(t, "null", strings.TrimSpace(string(data)))
}

func TestFormatJSON_WithCause(t *testing.T) {
	err := New(ErrCodeInternal, "operation failed", errors.New("underlying error"))

	data, jsonErr := FormatJSON(err)
	require.NoError(t, jsonErr)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "underlying error", result["cause"])
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "index is corrupted", nil).
		WithSuggestion("Run 'baw rebuild' to regenerate it")

	result := FormatForCLI(err)

	assert.Contains(t, result, "index is corrupted")
	assert.Contains(t, result, "Hint: Run 'baw rebuild'")
	assert.Contains(t, result, "ERR_206_CORRUPT_INDEX")
}

func TestFormatForCLI_WrappedError(t *testing.T) {
	err := fmt.Errorf("save: %w", MirrorError("UC001", errors.New("read-only file system")))

	result := FormatForCLI(err)

	assert.Contains(t, result, "mirror for UC001 not written")
	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.LessOrEqual(t, len(lines), 3, "should be concise")
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	err := ParseError("Artifacts/bad.json", errors.New("unexpected EOF"))

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeParse, fields["error_code"])
	assert.Equal(t, "unexpected EOF", fields["cause"])
	assert.Equal(t, "Artifacts/bad.json", fields["detail_path"])
	assert.Equal(t, map[string]any{"error": "plain"}, FormatForLog(errors.New("plain")))
	assert.Nil(t, FormatForLog(nil))
}
