// Package memory 提供领域服务的内存实现
//
// 用于测试、示例和不需要持久化的场景。所有实现都是并发安全的。
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskmq/domain"
	"taskmq/errors"
)

// Store 内存领域服务集合
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*domain.Job
	projects map[string]*domain.Project
	users    map[string]*domain.User // email -> user
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*domain.Job),
		projects: make(map[string]*domain.Project),
		users:    make(map[string]*domain.User),
	}
}

// Services 返回绑定到本存储的服务集合
func (s *Store) Services() domain.Services {
	return domain.Services{Jobs: s, Projects: s, Users: s}
}

// CreateJob 创建任务
func (s *Store) CreateJob(ctx context.Context, input domain.CreateJobInput) (string, error) {
	if input.Title == "" {
		return "", errors.New(errors.ErrCodeValidation, "job title is required")
	}
	if input.ProjectID == "" {
		return "", errors.New(errors.ErrCodeValidation, "project_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[input.ProjectID]; !ok {
		return "", errors.Newf(errors.ErrCodeNotFound, "project %s not found", input.ProjectID)
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Title:     input.Title,
		ProjectID: input.ProjectID,
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	return job.ID, nil
}

// UpdateJob 更新任务
func (s *Store) UpdateJob(ctx context.Context, id string, input domain.UpdateJobInput) error {
	if input.Title == "" {
		return errors.New(errors.ErrCodeValidation, "job title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errors.Newf(errors.ErrCodeNotFound, "job %s not found", id)
	}
	if _, ok := s.projects[input.ProjectID]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "project %s not found", input.ProjectID)
	}

	job.Title = input.Title
	job.Description = input.Description
	job.DueDate = input.DueDate
	job.ProjectID = input.ProjectID
	return nil
}

// DeleteJob 删除任务
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "job %s not found", id)
	}
	delete(s.jobs, id)
	return nil
}

// GetJob 获取单个任务
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

// ListJobs 按创建时间排序分页获取任务
func (s *Store) ListJobs(ctx context.Context, pageNumber, pageSize int) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		all = append(all, &copied)
	}
	sortByCreated(all, func(j *domain.Job) time.Time { return j.CreatedAt })
	return paginate(all, pageNumber, pageSize), nil
}

// CreateProject 创建项目
func (s *Store) CreateProject(ctx context.Context, input domain.CreateProjectInput) (string, error) {
	if input.Name == "" {
		return "", errors.New(errors.ErrCodeValidation, "project name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      input.Name,
		CreatedAt: time.Now().UTC(),
	}
	s.projects[project.ID] = project
	return project.ID, nil
}

// UpdateProject 更新项目
func (s *Store) UpdateProject(ctx context.Context, id string, input domain.UpdateProjectInput) error {
	if input.Name == "" {
		return errors.New(errors.ErrCodeValidation, "project name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		return errors.Newf(errors.ErrCodeNotFound, "project %s not found", id)
	}
	project.Name = input.Name
	project.Description = input.Description
	return nil
}

// DeleteProject 删除项目及其所有任务
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return errors.Newf(errors.ErrCodeNotFound, "project %s not found", id)
	}
	delete(s.projects, id)
	for jobID, job := range s.jobs {
		if job.ProjectID == id {
			delete(s.jobs, jobID)
		}
	}
	return nil
}

// GetProject 获取单个项目
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "project %s not found", id)
	}
	copied := *project
	return &copied, nil
}

// ListProjects 按创建时间排序分页获取项目
func (s *Store) ListProjects(ctx context.Context, pageNumber, pageSize int) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Project, 0, len(s.projects))
	for _, project := range s.projects {
		copied := *project
		all = append(all, &copied)
	}
	sortByCreated(all, func(p *domain.Project) time.Time { return p.CreatedAt })
	return paginate(all, pageNumber, pageSize), nil
}

// Register 注册新用户
func (s *Store) Register(ctx context.Context, input domain.RegisterInput) error {
	if input.UserName == "" || input.Email == "" || input.Password == "" {
		return errors.New(errors.ErrCodeValidation, "user_name, email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(input.Email)
	if _, ok := s.users[email]; ok {
		return errors.New(errors.ErrCodeDuplicate, "email already registered")
	}
	for _, u := range s.users {
		if u.UserName == input.UserName {
			return errors.New(errors.ErrCodeDuplicate, "username already exists")
		}
	}

	s.users[email] = &domain.User{
		ID:           uuid.NewString(),
		UserName:     input.UserName,
		Email:        email,
		PasswordHash: hashPassword(input.Password),
		CreatedAt:    time.Now().UTC(),
	}
	return nil
}

// Login 校验凭证并签发令牌
func (s *Store) Login(ctx context.Context, input domain.LoginInput) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(input.Email)]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnauthorized, "incorrect email")
	}
	if hashPassword(input.Password) != user.PasswordHash {
		return nil, errors.New(errors.ErrCodeUnauthorized, "invalid password")
	}

	// 不透明的 bearer 令牌；签名方案由上游认证服务决定
	return &domain.Token{AccessToken: "tok-" + uuid.NewString()}, nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func sortByCreated[T any](items []*T, createdAt func(*T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).Before(createdAt(items[j]))
	})
}

func paginate[T any](items []*T, pageNumber, pageSize int) []*T {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(items) {
		return []*T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ domain.JobService     = (*Store)(nil)
	_ domain.ProjectService = (*Store)(nil)
	_ domain.UserService    = (*Store)(nil)
)
