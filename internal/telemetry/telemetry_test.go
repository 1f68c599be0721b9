package telemetry

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestNewClientDisabledByDefault(t *testing.T) {
	c := NewClient("1.0.0", nil)
	_, ok := c.(NoOpClient)
	assert.True(t, ok)
}

func TestNewClientDisabledWhenFalse(t *testing.T) {
	enabled := false
	c := NewClient("1.0.0", &enabled)
	_, ok := c.(NoOpClient)
	assert.True(t, ok)
}

func TestNoOpClientTrackCommandDoesNotPanic(t *testing.T) {
	c := NoOpClient{}
	cmd := &cobra.Command{Use: "checkpoint"}
	assert.NotPanics(t, func() {
		c.TrackCommand(cmd, "ok", "claude-code")
		c.Close()
	})
}
