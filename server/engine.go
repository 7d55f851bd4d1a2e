package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskmq/logging"
)

// IServer 业务进程必须实现的生命周期钩子
//
// 模板方法接口：实现者只填各个步骤，启动算法由 Engine 编排。
type IServer interface {
	// Name 应用名称
	Name() string

	// LoadConfig 加载配置（步骤 1）
	LoadConfig() error

	// SetupDependencies 初始化依赖：连接消息中间件、构建服务（步骤 2）
	SetupDependencies(ctx context.Context) error

	// StartBackgroundTasks 启动消费者等非阻塞任务（步骤 3）
	StartBackgroundTasks(ctx context.Context) error

	// Run 阻塞运行主循环，ctx 取消时返回（步骤 4）
	Run(ctx context.Context) error

	// Shutdown 释放资源（步骤 5）
	Shutdown(ctx context.Context) error
}

// Engine 启动引擎
//
// 编排标准流程：LoadConfig -> Setup -> Background -> Run -> 等待
// 信号 -> Shutdown。
type Engine struct {
	server  IServer
	options *Options
	state   State
	logger  logging.Logger
}

// NewEngine 创建启动引擎
func NewEngine(server IServer, opts ...Option) *Engine {
	options := DefaultOptions()
	if name := server.Name(); name != "" {
		options.Name = name
	}
	for _, o := range opts {
		o(options)
	}

	return &Engine{
		server:  server,
		options: options,
		state:   StatePending,
		logger:  logging.GetLogger().WithFields(logging.Component(options.Name)),
	}
}

// State 当前引擎状态
func (e *Engine) State() State {
	return e.state
}

// Start 执行启动模板流程，阻塞到进程被信号终止或 Run 返回
func (e *Engine) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.logger.Info(ctx, "starting", logging.String("version", e.options.Version))
	e.state = StateInitializing

	if err := e.server.LoadConfig(); err != nil {
		e.state = StateError
		return fmt.Errorf("load config: %w", err)
	}

	// 依赖初始化限时，防止连接卡死
	setupCtx, setupCancel := context.WithTimeout(ctx, e.options.StartupTimeout)
	defer setupCancel()

	if err := e.server.SetupDependencies(setupCtx); err != nil {
		e.state = StateError
		return fmt.Errorf("setup dependencies: %w", err)
	}
	e.state = StatePrepared

	for _, hook := range e.options.OnBeforeStart {
		if err := hook(ctx); err != nil {
			e.state = StateError
			return fmt.Errorf("before-start hook: %w", err)
		}
	}

	if err := e.server.StartBackgroundTasks(ctx); err != nil {
		e.state = StateError
		return fmt.Errorf("start background tasks: %w", err)
	}

	e.state = StateRunning
	errChan := make(chan error, 1)
	go func() {
		e.logger.Info(ctx, "running")
		errChan <- e.server.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(quit)

	var runErr error
	select {
	case err := <-errChan:
		runErr = err
		cancel()
	case sig := <-quit:
		e.logger.Info(ctx, "signal received, shutting down", logging.String("signal", sig.String()))
		cancel()
	}

	e.state = StateStopping
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), e.options.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.state = StateError
		return fmt.Errorf("shutdown: %w", err)
	}

	for _, hook := range e.options.OnAfterStop {
		if err := hook(shutdownCtx); err != nil {
			e.logger.Warn(shutdownCtx, "after-stop hook failed", logging.Error(err))
		}
	}

	if runErr != nil {
		e.state = StateError
		return fmt.Errorf("run: %w", runErr)
	}

	e.state = StateStopped
	e.logger.Info(context.Background(), "shutdown complete")
	return nil
}
