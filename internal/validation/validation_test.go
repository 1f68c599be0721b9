package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("2026-01-25-f736da47"))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("has/slash"))
	assert.Error(t, ValidateSessionID(`has\backslash`))
}

func TestValidateCheckpointName(t *testing.T) {
	assert.NoError(t, ValidateCheckpointName("auto_before_edit_2025-11-16T14-23-45"))
	assert.Error(t, ValidateCheckpointName(""))
	assert.Error(t, ValidateCheckpointName("../escape"))
}

func TestValidateForkID(t *testing.T) {
	assert.NoError(t, ValidateForkID("3fa85f6457174562b3fc2c963f66afa6"))
	assert.Error(t, ValidateForkID(""))
	assert.Error(t, ValidateForkID("bad/slash"))
}

func TestValidateRelPath(t *testing.T) {
	assert.NoError(t, ValidateRelPath("src/main.go"))
	assert.Error(t, ValidateRelPath(""))
	assert.Error(t, ValidateRelPath("/etc/passwd"))
	assert.Error(t, ValidateRelPath("../../etc/passwd"))
	assert.Error(t, ValidateRelPath("a/../../b"))
}
