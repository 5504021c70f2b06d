package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kubiyabot/skill-engine/internal/observability"
)

// Logger provides structured, append-only audit logging for credential
// access and skill execution, with configurable privacy controls.
//
// Key features:
//   - Structured logging with JSON or text output (the logfmt format is
//     written as JSON)
//   - Async buffered writes so the hot execution path never blocks on disk I/O
//   - Distributed tracing correlation (trace_id, span_id)
//   - Configurable event filtering and sampling
//
// Usage:
//
//	logger, err := audit.NewLogger(audit.Config{
//	    Enabled: true,
//	    Level:   audit.LevelInfo,
//	    Format:  audit.FormatJSON,
//	    Output:  "stdout",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.LogExecutionStart(ctx, "kubectl", "default", "list_pods", executionID, "container")
type Logger struct {
	config     Config
	output     io.WriteCloser
	slogger    *slog.Logger
	buffer     chan *Event
	wg         sync.WaitGroup
	done       chan struct{}
	eventTypes map[EventType]bool
}

// NewLogger creates a new audit logger with the given configuration.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	// Set defaults
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFieldSize == 0 {
		config.MaxFieldSize = 1024
	}

	// Open output
	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	// Build event type filter map
	eventTypes := make(map[EventType]bool)
	for _, et := range config.EventTypes {
		eventTypes[et] = true
	}

	l := &Logger{
		config:     config,
		output:     output,
		buffer:     make(chan *Event, config.BufferSize),
		done:       make(chan struct{}),
		eventTypes: eventTypes,
	}

	// Create underlying slog logger for structured output
	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: l.slogLevel(),
		})
	case FormatText:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level: l.slogLevel(),
		})
	default:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level: l.slogLevel(),
		})
	}
	l.slogger = slog.New(handler).With("component", "audit")

	// Start async writer
	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining events and closes the logger.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}

	close(l.done)
	l.wg.Wait()

	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// Log writes an audit event to the log.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}

	// Check sampling
	if l.config.SampleRate < 1.0 && rand.Float64() > l.config.SampleRate {
		return
	}

	// Check event type filter
	if len(l.eventTypes) > 0 && !l.eventTypes[event.Type] {
		return
	}

	// Check level
	if !l.shouldLog(event.Level) {
		return
	}

	// Set defaults
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Add trace context
	if event.TraceID == "" {
		event.TraceID = observability.GetTraceID(ctx)
	}
	if event.SpanID == "" {
		event.SpanID = observability.GetSpanID(ctx)
	}

	// Non-blocking write to buffer
	select {
	case l.buffer <- event:
	default:
		// Buffer full, log directly (slower but doesn't drop)
		l.writeEvent(event)
	}
}

// LogCredentialAccess logs a credential read. The credential value itself is
// never passed to this method.
func (l *Logger) LogCredentialAccess(ctx context.Context, skill, instance, key string) {
	l.Log(ctx, &Event{
		Type:     EventCredentialAccess,
		Level:    LevelInfo,
		Skill:    skill,
		Instance: instance,
		Action:   "credential_accessed",
		Details:  map[string]any{"key": key},
	})
}

// LogCredentialStore logs a credential write.
func (l *Logger) LogCredentialStore(ctx context.Context, skill, instance, key string) {
	l.Log(ctx, &Event{
		Type:     EventCredentialStore,
		Level:    LevelInfo,
		Skill:    skill,
		Instance: instance,
		Action:   "credential_stored",
		Details:  map[string]any{"key": key},
	})
}

// LogCredentialDelete logs a credential deletion.
func (l *Logger) LogCredentialDelete(ctx context.Context, skill, instance, key string) {
	l.Log(ctx, &Event{
		Type:     EventCredentialDelete,
		Level:    LevelInfo,
		Skill:    skill,
		Instance: instance,
		Action:   "credential_deleted",
		Details:  map[string]any{"key": key},
	})
}

// LogExecutionStart logs the start of a tool execution.
func (l *Logger) LogExecutionStart(ctx context.Context, skill, instance, tool, executionID, runtime string) {
	l.Log(ctx, &Event{
		Type:        EventExecutionStart,
		Level:       LevelInfo,
		Skill:       skill,
		Instance:    instance,
		ToolName:    tool,
		ExecutionID: executionID,
		Action:      "execution_started",
		Details:     map[string]any{"runtime": runtime},
	})
}

// LogExecutionEnd logs the completion of a tool execution, successful or not.
func (l *Logger) LogExecutionEnd(ctx context.Context, skill, instance, tool, executionID, runtime string, success bool, output string, duration time.Duration) {
	level := LevelInfo
	if !success {
		level = LevelWarn
	}

	details := map[string]any{
		"runtime": runtime,
		"success": success,
	}
	if l.config.IncludeToolOutput && output != "" {
		outputStr := output
		if len(outputStr) > l.config.MaxFieldSize {
			outputStr = outputStr[:l.config.MaxFieldSize] + "...(truncated)"
		}
		details["output"] = outputStr
	} else if output != "" {
		details["output_size"] = len(output)
	}

	l.Log(ctx, &Event{
		Type:        EventExecutionEnd,
		Level:       level,
		Skill:       skill,
		Instance:    instance,
		ToolName:    tool,
		ExecutionID: executionID,
		Action:      "execution_completed",
		Details:     details,
		Duration:    duration,
	})
}

// LogPolicyViolation logs a runtime security policy rejection.
func (l *Logger) LogPolicyViolation(ctx context.Context, skill, instance, rule, value, reason string) {
	l.Log(ctx, &Event{
		Type:     EventPolicyViolation,
		Level:    LevelWarn,
		Skill:    skill,
		Instance: instance,
		Action:   "policy_violation",
		Details: map[string]any{
			"rule":   rule,
			"value":  value,
			"reason": reason,
		},
	})
}

// LogError logs an error event.
func (l *Logger) LogError(ctx context.Context, eventType EventType, skill, instance, action, errorMsg string, details map[string]any) {
	l.Log(ctx, &Event{
		Type:     eventType,
		Level:    LevelError,
		Skill:    skill,
		Instance: instance,
		Action:   action,
		Error:    errorMsg,
		Details:  details,
	})
}

// WithInstance returns a logger bound to a specific (skill, instance) pair.
func (l *Logger) WithInstance(skill, instance string) *InstanceLogger {
	return &InstanceLogger{
		logger:   l,
		skill:    skill,
		instance: instance,
	}
}

// writeLoop processes buffered events.
func (l *Logger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		case <-ticker.C:
			// Flush any remaining buffered events
			l.flushBuffer()
		case <-l.done:
			// Drain remaining events
			l.flushBuffer()
			return
		}
	}
}

// flushBuffer drains all buffered events.
func (l *Logger) flushBuffer() {
	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		default:
			return
		}
	}
}

// writeEvent writes a single event to the output.
func (l *Logger) writeEvent(event *Event) {
	attrs := []any{
		"audit_id", event.ID,
		"audit_type", event.Type,
		"action", event.Action,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}

	if event.Skill != "" {
		attrs = append(attrs, "skill", event.Skill)
	}
	if event.Instance != "" {
		attrs = append(attrs, "instance", event.Instance)
	}
	if event.ToolName != "" {
		attrs = append(attrs, "tool_name", event.ToolName)
	}
	if event.ExecutionID != "" {
		attrs = append(attrs, "execution_id", event.ExecutionID)
	}
	if event.TraceID != "" {
		attrs = append(attrs, "trace_id", event.TraceID)
	}
	if event.SpanID != "" {
		attrs = append(attrs, "span_id", event.SpanID)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}

	// Add details as individual attributes for better querying
	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	switch event.Level {
	case LevelDebug:
		l.slogger.Debug("audit", attrs...)
	case LevelInfo:
		l.slogger.Info("audit", attrs...)
	case LevelWarn:
		l.slogger.Warn("audit", attrs...)
	case LevelError:
		l.slogger.Error("audit", attrs...)
	}
}

// shouldLog checks if an event at the given level should be logged.
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.config.Level]
}

// slogLevel converts audit level to slog level.
func (l *Logger) slogLevel() slog.Level {
	switch l.config.Level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InstanceLogger is a logger bound to a specific (skill, instance) pair.
type InstanceLogger struct {
	logger   *Logger
	skill    string
	instance string
}

// LogCredentialAccess logs a credential read for the bound instance.
func (s *InstanceLogger) LogCredentialAccess(ctx context.Context, key string) {
	s.logger.LogCredentialAccess(ctx, s.skill, s.instance, key)
}

// LogCredentialStore logs a credential write for the bound instance.
func (s *InstanceLogger) LogCredentialStore(ctx context.Context, key string) {
	s.logger.LogCredentialStore(ctx, s.skill, s.instance, key)
}

// LogCredentialDelete logs a credential deletion for the bound instance.
func (s *InstanceLogger) LogCredentialDelete(ctx context.Context, key string) {
	s.logger.LogCredentialDelete(ctx, s.skill, s.instance, key)
}

// LogExecutionStart logs an execution start for the bound instance.
func (s *InstanceLogger) LogExecutionStart(ctx context.Context, tool, executionID, runtime string) {
	s.logger.LogExecutionStart(ctx, s.skill, s.instance, tool, executionID, runtime)
}

// LogExecutionEnd logs an execution completion for the bound instance.
func (s *InstanceLogger) LogExecutionEnd(ctx context.Context, tool, executionID, runtime string, success bool, output string, duration time.Duration) {
	s.logger.LogExecutionEnd(ctx, s.skill, s.instance, tool, executionID, runtime, success, output, duration)
}

// LogPolicyViolation logs a policy rejection for the bound instance.
func (s *InstanceLogger) LogPolicyViolation(ctx context.Context, rule, value, reason string) {
	s.logger.LogPolicyViolation(ctx, s.skill, s.instance, rule, value, reason)
}

// LogError logs an error for the bound instance.
func (s *InstanceLogger) LogError(ctx context.Context, eventType EventType, action, errorMsg string, details map[string]any) {
	s.logger.LogError(ctx, eventType, s.skill, s.instance, action, errorMsg, details)
}
