// Package domain 定义任务/项目管理的领域模型与服务接口
//
// 服务接口是消息处理管线的业务边界：路由层把动作载荷解码为输入
// 结构后调用服务，不关心其内部实现。实现可以是内存版（见
// domain/memory）或数据库版。
package domain

import (
	"context"
	"time"
)

// Job 任务
type Job struct {
	ID          string    `json:"job_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	ProjectID   string    `json:"project_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Project 项目
type Project struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User 用户
type User struct {
	ID           string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token 登录成功后签发的访问令牌
type Token struct {
	AccessToken string `json:"access_token"`
}

// CreateJobInput 创建任务输入
type CreateJobInput struct {
	Title     string
	ProjectID string
}

// UpdateJobInput 更新任务输入
type UpdateJobInput struct {
	Title       string
	Description *string
	DueDate     time.Time
	ProjectID   string
}

// CreateProjectInput 创建项目输入
type CreateProjectInput struct {
	Name string
}

// UpdateProjectInput 更新项目输入
type UpdateProjectInput struct {
	Name        string
	Description *string
}

// RegisterInput 注册输入
type RegisterInput struct {
	UserName string
	Email    string
	Password string
}

// LoginInput 登录输入
type LoginInput struct {
	Email    string
	Password string
}

// JobService 任务服务
type JobService interface {
	// CreateJob 创建任务，返回新任务 ID；项目不存在时返回 NOT_FOUND
	CreateJob(ctx context.Context, input CreateJobInput) (string, error)

	// UpdateJob 更新任务
	UpdateJob(ctx context.Context, id string, input UpdateJobInput) error

	// DeleteJob 删除任务
	DeleteJob(ctx context.Context, id string) error

	// GetJob 获取单个任务
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobs 按页获取任务列表
	ListJobs(ctx context.Context, pageNumber, pageSize int) ([]*Job, error)
}

// ProjectService 项目服务
type ProjectService interface {
	CreateProject(ctx context.Context, input CreateProjectInput) (string, error)
	UpdateProject(ctx context.Context, id string, input UpdateProjectInput) error
	DeleteProject(ctx context.Context, id string) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, pageNumber, pageSize int) ([]*Project, error)
}

// UserService 用户服务
type UserService interface {
	// Register 注册新用户；用户名或邮箱已存在时返回 DUPLICATE_ERROR
	Register(ctx context.Context, input RegisterInput) error

	// Login 校验凭证并签发访问令牌；凭证错误时返回 UNAUTHORIZED
	Login(ctx context.Context, input LoginInput) (*Token, error)
}

// Services 路由层消费的服务集合
type Services struct {
	Jobs     JobService
	Projects ProjectService
	Users    UserService
}
