package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 记录生命周期步骤的桩实现
type fakeServer struct {
	mu      sync.Mutex
	steps   []string
	loadErr error
	runErr  error
}

func (s *fakeServer) record(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *fakeServer) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

func (s *fakeServer) Name() string { return "fake" }

func (s *fakeServer) LoadConfig() error {
	s.record("load")
	return s.loadErr
}

func (s *fakeServer) SetupDependencies(ctx context.Context) error {
	s.record("setup")
	return nil
}

func (s *fakeServer) StartBackgroundTasks(ctx context.Context) error {
	s.record("background")
	return nil
}

func (s *fakeServer) Run(ctx context.Context) error {
	s.record("run")
	return s.runErr
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.record("shutdown")
	return nil
}

func TestEngine_LifecycleOrder(t *testing.T) {
	fake := &fakeServer{}
	engine := NewEngine(fake, WithVersion("1.0.0"))

	// Run 立即返回 nil，引擎直接走关闭流程
	require.NoError(t, engine.Start())

	assert.Equal(t, []string{"load", "setup", "background", "run", "shutdown"}, fake.snapshot())
	assert.Equal(t, StateStopped, engine.State())
}

func TestEngine_LoadConfigErrorStopsEarly(t *testing.T) {
	fake := &fakeServer{loadErr: errors.New("bad config")}
	engine := NewEngine(fake)

	err := engine.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
	assert.Equal(t, StateError, engine.State())
	assert.Equal(t, []string{"load"}, fake.snapshot())
}

func TestEngine_RunErrorPropagates(t *testing.T) {
	fake := &fakeServer{runErr: errors.New("consume failed")}
	engine := NewEngine(fake)

	err := engine.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consume failed")
	assert.Equal(t, StateError, engine.State())

	// Run 失败后仍然执行 Shutdown
	assert.Contains(t, fake.snapshot(), "shutdown")
}

func TestEngine_BeforeStartHookFailureAborts(t *testing.T) {
	fake := &fakeServer{}
	engine := NewEngine(fake, WithBeforeStart(func(ctx context.Context) error {
		return errors.New("hook failed")
	}))

	err := engine.Start()
	require.Error(t, err)
	assert.Equal(t, StateError, engine.State())
	assert.NotContains(t, fake.snapshot(), "background")
}

func TestEngine_AfterStopHook(t *testing.T) {
	fake := &fakeServer{}
	called := make(chan struct{}, 1)
	engine := NewEngine(fake,
		WithShutdownTimeout(time.Second),
		WithAfterStop(func(ctx context.Context) error {
			called <- struct{}{}
			return nil
		}))

	require.NoError(t, engine.Start())

	select {
	case <-called:
	default:
		t.Fatal("after-stop hook not called")
	}
}
