// Package audit provides structured, append-only audit logging for credential
// access, skill execution, and policy decisions made by the runtimes.
package audit

import (
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// Credential events. Entries of this type never carry credential
	// material itself, only which key was touched and by whom.
	EventCredentialAccess EventType = "credential_access"
	EventCredentialStore  EventType = "credential_store"
	EventCredentialDelete EventType = "credential_delete"

	// Execution events
	EventExecutionStart EventType = "execution_start"
	EventExecutionEnd   EventType = "execution_end"

	// Policy events
	EventPolicyViolation EventType = "policy_violation"

	// Instance lifecycle events
	EventInstanceCreate EventType = "instance_create"
	EventInstanceUpdate EventType = "instance_update"
	EventInstanceDelete EventType = "instance_delete"
)

// Level represents audit log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a single audit log entry.
type Event struct {
	// ID is a unique identifier for this audit event.
	ID string `json:"id"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Level is the severity level.
	Level Level `json:"level"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Skill identifies the skill the event concerns.
	Skill string `json:"skill,omitempty"`

	// Instance identifies the skill instance the event concerns.
	Instance string `json:"instance,omitempty"`

	// ToolName identifies the tool for execution events.
	ToolName string `json:"tool_name,omitempty"`

	// ExecutionID links to a specific execution record.
	ExecutionID string `json:"execution_id,omitempty"`

	// Action describes what happened.
	Action string `json:"action"`

	// Details contains event-specific structured data. Credential events
	// carry only the key name here, never the credential value.
	Details map[string]any `json:"details,omitempty"`

	// Duration is the time taken for timed operations.
	Duration time.Duration `json:"duration,omitempty"`

	// Error contains error information if applicable.
	Error string `json:"error,omitempty"`

	// TraceID for distributed tracing correlation.
	TraceID string `json:"trace_id,omitempty"`

	// SpanID for distributed tracing correlation.
	SpanID string `json:"span_id,omitempty"`
}

// CredentialDetails contains details for credential access/store/delete events.
type CredentialDetails struct {
	Key string `json:"key"`
}

// ExecutionDetails contains details for execution start/end events.
type ExecutionDetails struct {
	Runtime    string `json:"runtime"`
	Success    bool   `json:"success,omitempty"`
	OutputSize int    `json:"output_size,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// PolicyViolationDetails contains details for a blocked runtime operation.
type PolicyViolationDetails struct {
	Rule   string `json:"rule"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// OutputFormat specifies the audit log output format.
type OutputFormat string

const (
	FormatJSON   OutputFormat = "json"
	FormatLogfmt OutputFormat = "logfmt"
	FormatText   OutputFormat = "text"
)

// Config configures the audit logger.
type Config struct {
	// Enabled determines if audit logging is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Level is the minimum level to log.
	Level Level `json:"level" yaml:"level"`

	// Format specifies the output format.
	Format OutputFormat `json:"format" yaml:"format"`

	// Output specifies where to write logs.
	// Supported: "stdout", "stderr", "file:/path/to/file.log"
	Output string `json:"output" yaml:"output"`

	// IncludeToolInput determines if tool inputs are logged.
	// Set to false for privacy-sensitive environments.
	IncludeToolInput bool `json:"include_tool_input" yaml:"include_tool_input"`

	// IncludeToolOutput determines if execution outputs are logged.
	IncludeToolOutput bool `json:"include_tool_output" yaml:"include_tool_output"`

	// MaxFieldSize limits the size of logged fields.
	MaxFieldSize int `json:"max_field_size" yaml:"max_field_size"`

	// EventTypes filters which event types to log (empty = all).
	EventTypes []EventType `json:"event_types" yaml:"event_types"`

	// SampleRate controls what fraction of events are logged (0.0 to 1.0).
	// 1.0 = all events, 0.1 = 10% of events.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// FlushInterval is how often to flush the buffer.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns a default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:               false,
		Level:                 LevelInfo,
		Format:                FormatJSON,
		Output:                "stdout",
		IncludeToolInput:      false,
		IncludeToolOutput:     false,
		MaxFieldSize:          1024,
		SampleRate:            1.0,
		BufferSize:            1000,
		FlushInterval:         5 * time.Second,
	}
}
