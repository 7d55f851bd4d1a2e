package dispatch

import (
	"encoding/json"
	"time"

	"taskmq/errors"
)

// 支持的动作名
const (
	ActionCreateJob  = "create_job"
	ActionUpdateJob  = "update_job"
	ActionDeleteJob  = "delete_job"
	ActionGetJob     = "get_job"
	ActionGetAllJobs = "get_all_jobs"

	ActionCreateProject  = "create_project"
	ActionUpdateProject  = "update_project"
	ActionDeleteProject  = "delete_project"
	ActionGetProject     = "get_project"
	ActionGetAllProjects = "get_all_projects"

	ActionRegisterUser = "register_user"
	ActionLoginUser    = "login_user"
)

// mutatingActions 需要认证令牌的动作（写操作）
var mutatingActions = map[string]bool{
	ActionCreateJob:     true,
	ActionUpdateJob:     true,
	ActionDeleteJob:     true,
	ActionCreateProject: true,
	ActionUpdateProject: true,
	ActionDeleteProject: true,
}

// RequiresAuth 判断动作是否需要认证令牌
func RequiresAuth(action string) bool {
	return mutatingActions[action]
}

// 各动作的载荷结构，字段名即线上 JSON 字段

type createJobArgs struct {
	Title     string `json:"title"`
	ProjectID string `json:"project_id"`
}

type updateJobArgs struct {
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	DueDate     time.Time `json:"due_date"`
	ProjectID   string    `json:"project_id"`
}

type jobIDArgs struct {
	JobID string `json:"job_id"`
}

type createProjectArgs struct {
	Name string `json:"name"`
}

type updateProjectArgs struct {
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type projectIDArgs struct {
	ProjectID string `json:"project_id"`
}

type paginationArgs struct {
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

type registerArgs struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// decodeArgs 将动作载荷解码到目标结构
func decodeArgs(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New(errors.ErrCodeValidation, "action payload is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid action payload")
	}
	return nil
}

// normalize 分页参数缺省（页码从 1 开始，默认每页 10 条）
func (p *paginationArgs) normalize() {
	if p.PageNumber < 1 {
		p.PageNumber = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
}
