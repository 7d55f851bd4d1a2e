// Package server 提供消费端进程的生命周期编排
package server

import (
	"context"
	"time"
)

// State 进程生命周期状态
type State int

const (
	// StatePending 等待初始化
	StatePending State = iota
	// StateInitializing 正在初始化配置
	StateInitializing
	// StatePrepared 依赖已就绪，等待启动
	StatePrepared
	// StateRunning 正在消费
	StateRunning
	// StateStopping 正在优雅关闭
	StateStopping
	// StateStopped 已停止
	StateStopped
	// StateError 发生不可恢复的错误
	StateError
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateInitializing:
		return "Initializing"
	case StatePrepared:
		return "Prepared"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Hook 生命周期回调
type Hook func(ctx context.Context) error

// Options 引擎配置
type Options struct {
	Name            string
	Version         string
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration

	// 生命周期回调
	OnBeforeStart []Hook
	OnAfterStop   []Hook
}

// Option 配置修改函数
type Option func(*Options)

// DefaultOptions 默认引擎配置
func DefaultOptions() *Options {
	return &Options{
		Name:            "taskmq-server",
		Version:         "0.0.0",
		StartupTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// WithName 设置服务名称
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithVersion 设置服务版本
func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}

// WithStartupTimeout 设置启动超时
func WithStartupTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.StartupTimeout = t
	}
}

// WithShutdownTimeout 设置关闭超时
func WithShutdownTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = t
	}
}

// WithBeforeStart 添加启动前回调
func WithBeforeStart(fn Hook) Option {
	return func(o *Options) {
		o.OnBeforeStart = append(o.OnBeforeStart, fn)
	}
}

// WithAfterStop 添加停止后回调
func WithAfterStop(fn Hook) Option {
	return func(o *Options) {
		o.OnAfterStop = append(o.OnAfterStop, fn)
	}
}
