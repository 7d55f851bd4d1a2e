package dispatch

import (
	"context"
	"encoding/json"

	"taskmq/domain"
	"taskmq/envelope"
	"taskmq/errors"
	"taskmq/logging"
)

// Router 动作路由器
//
// 把请求信封分发到对应的领域操作。三条边界规则：
//   - 写操作要求信封携带非空认证令牌，读操作不要求
//   - 载荷字段缺失或非法时返回校验错误，不触碰领域服务
//   - 任何结果都以 (data, error) 返回，不向外抛 panic
type Router struct {
	services domain.Services
	logger   logging.Logger
}

// NewRouter 创建动作路由器
func NewRouter(services domain.Services, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Router{
		services: services,
		logger:   logger.WithFields(logging.Component("router")),
	}
}

// Route 执行请求信封描述的动作
//
// 返回的 data 是响应信封的负载；err 非空时为应用级失败，其代码
// 决定调度器的处置方式。
func (r *Router) Route(ctx context.Context, req *envelope.Request) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "action handler panicked",
				logging.String("action", req.Action),
				logging.Any("panic", rec))
			data = nil
			err = errors.Newf(errors.ErrCodeInternal, "action %s failed unexpectedly", req.Action)
		}
	}()

	if RequiresAuth(req.Action) && req.Auth == "" {
		return nil, errors.Newf(errors.ErrCodeUnauthorized, "authentication required for %s", req.Action)
	}

	switch req.Action {
	case ActionCreateJob:
		return r.createJob(ctx, req.Data)
	case ActionUpdateJob:
		return r.updateJob(ctx, req.Data)
	case ActionDeleteJob:
		return r.deleteJob(ctx, req.Data)
	case ActionGetJob:
		return r.getJob(ctx, req.Data)
	case ActionGetAllJobs:
		return r.getAllJobs(ctx, req.Data)
	case ActionCreateProject:
		return r.createProject(ctx, req.Data)
	case ActionUpdateProject:
		return r.updateProject(ctx, req.Data)
	case ActionDeleteProject:
		return r.deleteProject(ctx, req.Data)
	case ActionGetProject:
		return r.getProject(ctx, req.Data)
	case ActionGetAllProjects:
		return r.getAllProjects(ctx, req.Data)
	case ActionRegisterUser:
		return r.registerUser(ctx, req.Data)
	case ActionLoginUser:
		return r.loginUser(ctx, req.Data)
	default:
		r.logger.Warn(ctx, "unknown action received", logging.String("action", req.Action))
		return nil, errors.Newf(errors.ErrCodeUnknownAction, "unknown action: %s", req.Action)
	}
}

func (r *Router) createJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var args createJobArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.Title == "" || args.ProjectID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "title and project_id are required")
	}

	jobID, err := r.services.Jobs.CreateJob(ctx, domain.CreateJobInput{
		Title:     args.Title,
		ProjectID: args.ProjectID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_id": jobID, "message": "Job created successfully"}, nil
}

func (r *Router) updateJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var args updateJobArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.JobID == "" || args.Title == "" || args.ProjectID == "" || args.DueDate.IsZero() {
		return nil, errors.New(errors.ErrCodeValidation, "job_id, title, due_date and project_id are required")
	}

	err := r.services.Jobs.UpdateJob(ctx, args.JobID, domain.UpdateJobInput{
		Title:       args.Title,
		Description: args.Description,
		DueDate:     args.DueDate,
		ProjectID:   args.ProjectID,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": "Job updated successfully"}, nil
}

func (r *Router) deleteJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var args jobIDArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.JobID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "job_id is required")
	}

	if err := r.services.Jobs.DeleteJob(ctx, args.JobID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": "Job deleted successfully"}, nil
}

func (r *Router) getJob(ctx context.Context, payload json.RawMessage) (any, error) {
	var args jobIDArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.JobID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "job_id is required")
	}
	return r.services.Jobs.GetJob(ctx, args.JobID)
}

func (r *Router) getAllJobs(ctx context.Context, payload json.RawMessage) (any, error) {
	args := paginationArgs{}
	if len(payload) > 0 {
		if err := decodeArgs(payload, &args); err != nil {
			return nil, err
		}
	}
	args.normalize()
	return r.services.Jobs.ListJobs(ctx, args.PageNumber, args.PageSize)
}

func (r *Router) createProject(ctx context.Context, payload json.RawMessage) (any, error) {
	var args createProjectArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.Name == "" {
		return nil, errors.New(errors.ErrCodeValidation, "name is required")
	}

	projectID, err := r.services.Projects.CreateProject(ctx, domain.CreateProjectInput{Name: args.Name})
	if err != nil {
		return nil, err
	}
	return map[string]any{"project_id": projectID}, nil
}

func (r *Router) updateProject(ctx context.Context, payload json.RawMessage) (any, error) {
	var args updateProjectArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.ProjectID == "" || args.Name == "" {
		return nil, errors.New(errors.ErrCodeValidation, "project_id and name are required")
	}

	err := r.services.Projects.UpdateProject(ctx, args.ProjectID, domain.UpdateProjectInput{
		Name:        args.Name,
		Description: args.Description,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (r *Router) deleteProject(ctx context.Context, payload json.RawMessage) (any, error) {
	var args projectIDArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.ProjectID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "project_id is required")
	}

	if err := r.services.Projects.DeleteProject(ctx, args.ProjectID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (r *Router) getProject(ctx context.Context, payload json.RawMessage) (any, error) {
	var args projectIDArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.ProjectID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "project_id is required")
	}
	return r.services.Projects.GetProject(ctx, args.ProjectID)
}

func (r *Router) getAllProjects(ctx context.Context, payload json.RawMessage) (any, error) {
	args := paginationArgs{}
	if len(payload) > 0 {
		if err := decodeArgs(payload, &args); err != nil {
			return nil, err
		}
	}
	args.normalize()

	projects, err := r.services.Projects.ListProjects(ctx, args.PageNumber, args.PageSize)
	if err != nil {
		return nil, err
	}
	return map[string]any{"projects": projects, "total_count": len(projects)}, nil
}

func (r *Router) registerUser(ctx context.Context, payload json.RawMessage) (any, error) {
	var args registerArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.UserName == "" || args.Email == "" || args.Password == "" {
		return nil, errors.New(errors.ErrCodeValidation, "user_name, email and password are required")
	}

	err := r.services.Users.Register(ctx, domain.RegisterInput{
		UserName: args.UserName,
		Email:    args.Email,
		Password: args.Password,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (r *Router) loginUser(ctx context.Context, payload json.RawMessage) (any, error) {
	var args loginArgs
	if err := decodeArgs(payload, &args); err != nil {
		return nil, err
	}
	if args.Email == "" || args.Password == "" {
		return nil, errors.New(errors.ErrCodeValidation, "email and password are required")
	}

	token, err := r.services.Users.Login(ctx, domain.LoginInput{
		Email:    args.Email,
		Password: args.Password,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"access_token": token.AccessToken}, nil
}
