// Package engine dispatches a tool invocation to the runtime its skill
// declares (module, container, or native), gating entry with a
// per-instance concurrency semaphore, resolving instance config and
// secrets, validating arguments against the tool's parameter schema, and
// emitting exactly one audit start/end pair and one metrics observation
// per invocation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kubiyabot/skill-engine/internal/audit"
	"github.com/kubiyabot/skill-engine/internal/credentials"
	"github.com/kubiyabot/skill-engine/internal/instance"
	"github.com/kubiyabot/skill-engine/internal/observability"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Runtime is the interface the Engine dispatches invocations through. Each
// skill kind (module/container/native) is backed by one implementor,
// injected at construction rather than looked up from a global registry.
type Runtime interface {
	Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError)
}

// Invocation is the Engine's runtime-agnostic view of one dispatched tool
// call: everything a Runtime implementor needs, independent of how it
// isolates execution.
type Invocation struct {
	Skill    *models.Skill
	Tool     *models.Tool
	Instance *models.InstanceConfig
	Resolved map[string]*credentials.SecureString
	Args     map[string]any
	Timeout  time.Duration
}

// Engine owns compiled-module caching indirectly (through the module
// runtime) and dispatches invocations to the correct Runtime based on the
// skill's declared kind.
type Engine struct {
	runtimes map[models.RuntimeKind]Runtime
	manager  *instance.Manager
	creds    *credentials.Store
	audit    *audit.Logger
	metrics  *Metrics
	tracer   *observability.Tracer
	logger   *slog.Logger
	clock    func() time.Time
	sema     *semaphoreRegistry
}

// New builds an Engine bound to manager and creds, dispatching to runtimes
// by skill kind.
func New(manager *instance.Manager, creds *credentials.Store, runtimes map[models.RuntimeKind]Runtime, opts ...Option) *Engine {
	e := &Engine{
		runtimes: runtimes,
		manager:  manager,
		creds:    creds,
		logger:   slog.Default(),
		clock:    func() time.Time { return time.Now().UTC() },
		sema:     newSemaphoreRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs skill/instance's tool with args, enforcing the full
// Pending -> Running -> {Success, Failed, Timeout, Cancelled} lifecycle:
// schema validation, instance/secret resolution, per-instance concurrency
// admission, dispatch, audit, and metrics.
func (e *Engine) Execute(ctx context.Context, skill *models.Skill, instanceName, toolName string, args map[string]any) (*models.ExecResult, *models.ExecError) {
	tool := findTool(skill, toolName)
	if tool == nil {
		return nil, models.NewNotFound(fmt.Sprintf("skill %q has no tool %q", skill.Name, toolName))
	}

	coerced, execErr := validateArgs(tool, args)
	if execErr != nil {
		return nil, execErr
	}

	runtime, ok := e.runtimes[skill.Runtime]
	if !ok {
		return nil, models.NewInternal(fmt.Sprintf("no runtime registered for skill kind %q", skill.Runtime), nil)
	}

	instCfg, err := e.manager.LoadInstance(skill.Name, instanceName)
	if err != nil {
		return nil, models.NewNotFound(fmt.Sprintf("instance %q of skill %q: %v", instanceName, skill.Name, err))
	}

	resolved, err := instance.GetAllConfig(ctx, e.creds, instCfg)
	if err != nil {
		return nil, models.NewProviderError("resolve instance secrets", err)
	}
	defer func() {
		for _, v := range resolved {
			v.Close()
		}
	}()

	maxConcurrent := instCfg.Capabilities.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = models.DefaultMaxConcurrentRequests
	}
	release, err := e.sema.acquire(ctx, skill.Name, instanceName, maxConcurrent)
	if err != nil {
		return nil, models.NewCancelled(fmt.Sprintf("waiting for %s/%s concurrency slot: %v", skill.Name, instanceName, err))
	}
	defer release()

	record := &models.ExecutionRecord{
		ID:        uuid.NewString(),
		Skill:     skill.Name,
		Tool:      tool.Name,
		Instance:  instanceName,
		Status:    models.StatusPending,
		StartedAt: e.clock(),
	}
	record.Advance(models.StatusRunning)

	if e.audit != nil {
		e.audit.LogExecutionStart(ctx, skill.Name, instanceName, tool.Name, record.ID, string(skill.Runtime))
	}

	timeout := time.Duration(instCfg.Capabilities.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = models.DefaultTimeoutSeconds * time.Second
	}

	dispatchCtx := ctx
	var span trace.Span
	if e.tracer != nil {
		dispatchCtx, span = e.tracer.TraceToolExecution(ctx, tool.Name)
	}

	start := time.Now()
	result, execErr := runtime.Execute(dispatchCtx, &Invocation{
		Skill:    skill,
		Tool:     tool,
		Instance: instCfg,
		Resolved: resolved,
		Args:     coerced,
		Timeout:  timeout,
	})
	duration := time.Since(start)

	if span != nil {
		if execErr != nil {
			e.tracer.RecordError(span, execErr)
		}
		span.End()
	}

	status := outcomeStatus(execErr)
	record.Advance(status)
	record.Duration = duration

	success := execErr == nil
	output := ""
	if result != nil {
		output = result.Output
	}
	if execErr != nil {
		record.Error = execErr.Error()
	} else {
		record.Output = output
	}

	if e.audit != nil {
		e.audit.LogExecutionEnd(ctx, skill.Name, instanceName, tool.Name, record.ID, string(skill.Runtime), success, output, duration)
	}
	if e.metrics != nil {
		e.metrics.observe(skill.Name, tool.Name, string(status), duration)
	}

	return result, execErr
}

func findTool(skill *models.Skill, name string) *models.Tool {
	for i := range skill.Tools {
		if skill.Tools[i].Name == name {
			return &skill.Tools[i]
		}
	}
	return nil
}

// outcomeStatus maps an ExecError's kind onto the invocation's terminal
// state. A nil error is Success.
func outcomeStatus(execErr *models.ExecError) models.ExecutionStatus {
	if execErr == nil {
		return models.StatusSuccess
	}
	switch execErr.Kind {
	case models.KindTimeout:
		return models.StatusTimeout
	case models.KindCancelled:
		return models.StatusCancelled
	default:
		return models.StatusFailed
	}
}
