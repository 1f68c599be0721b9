// Package telemetry provides best-effort, opt-in usage tracking, grounded
// verbatim-in-spirit on the teacher's telemetry package: a Client
// interface, a NoOpClient default, and a PostHogClient behind a nilable
// opt-in setting, a fast-timeout HTTP transport, and a client-side-only
// machine id. Tracks command name and high-level outcome only — never file
// contents, transcript contents, or descriptions (spec.md §10).
package telemetry

import (
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
)

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// Client is the telemetry interface the CLI layer calls.
type Client interface {
	TrackCommand(cmd *cobra.Command, outcome string, agentKind string)
	Close()
}

// NoOpClient is used whenever telemetry is disabled or unconfigured.
type NoOpClient struct{}

func (NoOpClient) TrackCommand(*cobra.Command, string, string) {}
func (NoOpClient) Close()                                      {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...interface{})   {}
func (silentLogger) Debugf(string, ...interface{}) {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Errorf(string, ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client    posthog.Client
	machineID string
	version   string
	mu        sync.RWMutex
}

// NewClient selects NoOpClient or PostHogClient based on the nilable
// opt-in setting: nil or false means disabled.
//
//nolint:ireturn // factory function mirrors the teacher's NewClient shape
func NewClient(version string, telemetryEnabled *bool) Client {
	if telemetryEnabled == nil || !*telemetryEnabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID("rewind-cli")
	if err != nil {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id, version: version}
}

// TrackCommand records a command's name and outcome only.
func (p *PostHogClient) TrackCommand(cmd *cobra.Command, outcome string, agentKind string) {
	if cmd == nil || cmd.Hidden {
		return
	}

	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	selectedAgent := agentKind
	if selectedAgent == "" {
		selectedAgent = "auto"
	}

	props := posthog.NewProperties().
		Set("command", cmd.CommandPath()).
		Set("outcome", outcome).
		Set("agent", selectedAgent)

	//nolint:errcheck // best-effort telemetry, failures must not affect the CLI
	_ = c.Enqueue(posthog.Capture{DistinctId: id, Event: "rewind_command_executed", Properties: props})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
