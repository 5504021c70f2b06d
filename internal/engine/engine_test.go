package engine

import (
	"context"
	"testing"
	"time"

	"github.com/kubiyabot/skill-engine/internal/credentials"
	"github.com/kubiyabot/skill-engine/internal/instance"
	"github.com/kubiyabot/skill-engine/internal/observability"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

type fakeRuntime struct {
	result  *models.ExecResult
	execErr *models.ExecError
	calls   int
	lastInv *Invocation
}

func (f *fakeRuntime) Execute(ctx context.Context, inv *Invocation) (*models.ExecResult, *models.ExecError) {
	f.calls++
	f.lastInv = inv
	return f.result, f.execErr
}

func newTestEngine(t *testing.T, rt Runtime) (*Engine, *instance.Manager) {
	t.Helper()
	store := credentials.NewStore()
	mgr, err := instance.NewManager(t.TempDir(), store)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	eng := New(mgr, store, map[models.RuntimeKind]Runtime{
		models.RuntimeNative: rt,
	})
	return eng, mgr
}

func sampleSkill() *models.Skill {
	return &models.Skill{
		Name:    "greeter",
		Runtime: models.RuntimeNative,
		Tools: []models.Tool{
			{
				Name:      "say",
				SkillName: "greeter",
				Command:   "echo $msg",
				Parameters: []models.Parameter{
					{Name: "msg", Type: models.ParamString, Required: true},
				},
			},
		},
	}
}

func TestEngineExecuteSuccess(t *testing.T) {
	rt := &fakeRuntime{result: &models.ExecResult{Output: "hello\n", Duration: time.Millisecond}}
	eng, mgr := newTestEngine(t, rt)

	if err := mgr.CreateInstance(context.Background(), "greeter", "default", models.NewInstanceConfig("greeter", "", "default"), nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	result, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{"msg": "hello"})
	if execErr != nil {
		t.Fatalf("Execute() error = %v", execErr)
	}
	if result.Output != "hello\n" {
		t.Errorf("Output = %q, want %q", result.Output, "hello\n")
	}
	if rt.calls != 1 {
		t.Errorf("runtime called %d times, want 1", rt.calls)
	}
}

func TestEngineExecuteMissingToolIsNotFound(t *testing.T) {
	rt := &fakeRuntime{}
	eng, mgr := newTestEngine(t, rt)
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", models.NewInstanceConfig("greeter", "", "default"), nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	_, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "nope", nil)
	if execErr == nil || execErr.Kind != models.KindNotFound {
		t.Fatalf("Execute() = %v, want a NotFound error", execErr)
	}
	if rt.calls != 0 {
		t.Errorf("runtime called %d times, want 0 (validation should short-circuit)", rt.calls)
	}
}

func TestEngineExecuteMissingRequiredArgSkipsRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	eng, mgr := newTestEngine(t, rt)
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", models.NewInstanceConfig("greeter", "", "default"), nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	_, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{})
	if execErr == nil || execErr.Kind != models.KindValidationError {
		t.Fatalf("Execute() = %v, want a ValidationError", execErr)
	}
	if rt.calls != 0 {
		t.Errorf("runtime called %d times, want 0", rt.calls)
	}
}

func TestEngineExecuteUnknownInstanceIsNotFound(t *testing.T) {
	rt := &fakeRuntime{}
	eng, _ := newTestEngine(t, rt)

	_, execErr := eng.Execute(context.Background(), sampleSkill(), "missing", "say", map[string]any{"msg": "hi"})
	if execErr == nil || execErr.Kind != models.KindNotFound {
		t.Fatalf("Execute() = %v, want a NotFound error", execErr)
	}
}

func TestEngineExecuteMapsTimeout(t *testing.T) {
	rt := &fakeRuntime{execErr: models.NewTimeout("took too long")}
	eng, mgr := newTestEngine(t, rt)
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", models.NewInstanceConfig("greeter", "", "default"), nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	_, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{"msg": "hi"})
	if execErr == nil || execErr.Kind != models.KindTimeout {
		t.Fatalf("Execute() = %v, want a Timeout error", execErr)
	}
}

func TestEngineExecutePopulatesInvocationTimeoutFromInstance(t *testing.T) {
	rt := &fakeRuntime{result: &models.ExecResult{Output: "hello\n"}}
	eng, mgr := newTestEngine(t, rt)

	instCfg := models.NewInstanceConfig("greeter", "", "default")
	instCfg.Capabilities.TimeoutSeconds = 5
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", instCfg, nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if _, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{"msg": "hi"}); execErr != nil {
		t.Fatalf("Execute() error = %v", execErr)
	}
	if rt.lastInv == nil {
		t.Fatal("runtime was not invoked")
	}
	if rt.lastInv.Timeout != 5*time.Second {
		t.Errorf("Invocation.Timeout = %v, want 5s", rt.lastInv.Timeout)
	}
}

func TestEngineExecuteDefaultsInvocationTimeoutWhenUnset(t *testing.T) {
	rt := &fakeRuntime{result: &models.ExecResult{Output: "hello\n"}}
	eng, mgr := newTestEngine(t, rt)

	instCfg := models.NewInstanceConfig("greeter", "", "default")
	instCfg.Capabilities.TimeoutSeconds = 0
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", instCfg, nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if _, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{"msg": "hi"}); execErr != nil {
		t.Fatalf("Execute() error = %v", execErr)
	}
	if rt.lastInv.Timeout != models.DefaultTimeoutSeconds*time.Second {
		t.Errorf("Invocation.Timeout = %v, want default %ds", rt.lastInv.Timeout, models.DefaultTimeoutSeconds)
	}
}

func TestEngineExecuteWithTracerRecordsSpanOnError(t *testing.T) {
	rt := &fakeRuntime{execErr: models.NewInternal("boom", nil)}
	store := credentials.NewStore()
	mgr, err := instance.NewManager(t.TempDir(), store)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "test"})
	defer func() { _ = shutdown(context.Background()) }()

	eng := New(mgr, store, map[models.RuntimeKind]Runtime{models.RuntimeNative: rt}, WithTracer(tracer))
	if err := mgr.CreateInstance(context.Background(), "greeter", "default", models.NewInstanceConfig("greeter", "", "default"), nil); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if _, execErr := eng.Execute(context.Background(), sampleSkill(), "default", "say", map[string]any{"msg": "hi"}); execErr == nil {
		t.Fatal("Execute() error = nil, want an error")
	}
	if rt.calls != 1 {
		t.Fatalf("runtime called %d times, want 1", rt.calls)
	}
}
