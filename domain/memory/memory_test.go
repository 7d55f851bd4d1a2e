package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmq/domain"
	"taskmq/errors"
)

func TestStore_JobLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	projectID, err := store.CreateProject(ctx, domain.CreateProjectInput{Name: "backend"})
	require.NoError(t, err)

	jobID, err := store.CreateJob(ctx, domain.CreateJobInput{Title: "write docs", ProjectID: projectID})
	require.NoError(t, err)

	job, err := store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "write docs", job.Title)
	assert.Equal(t, projectID, job.ProjectID)

	desc := "updated"
	err = store.UpdateJob(ctx, jobID, domain.UpdateJobInput{
		Title:       "write more docs",
		Description: &desc,
		DueDate:     time.Now().Add(24 * time.Hour),
		ProjectID:   projectID,
	})
	require.NoError(t, err)

	job, err = store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "write more docs", job.Title)
	require.NotNil(t, job.Description)
	assert.Equal(t, "updated", *job.Description)

	require.NoError(t, store.DeleteJob(ctx, jobID))
	_, err = store.GetJob(ctx, jobID)
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_CreateJobMissingProject(t *testing.T) {
	store := NewStore()

	// 项目不存在时创建失败，错误信息指明缺失的项目
	_, err := store.CreateJob(context.Background(), domain.CreateJobInput{
		Title:     "orphan",
		ProjectID: "no-such-project",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "no-such-project")

	jobs, err := store.ListJobs(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_CreateJobValidation(t *testing.T) {
	store := NewStore()

	_, err := store.CreateJob(context.Background(), domain.CreateJobInput{ProjectID: "p1"})
	assert.True(t, errors.IsValidation(err))

	_, err = store.CreateJob(context.Background(), domain.CreateJobInput{Title: "t"})
	assert.True(t, errors.IsValidation(err))
}

func TestStore_ListJobsPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	projectID, err := store.CreateProject(ctx, domain.CreateProjectInput{Name: "p"})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := store.CreateJob(ctx, domain.CreateJobInput{
			Title:     fmt.Sprintf("job-%d", i),
			ProjectID: projectID,
		})
		require.NoError(t, err)
	}

	page, err := store.ListJobs(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	page, err = store.ListJobs(ctx, 3, 5)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// 越界页返回空列表而非错误
	page, err = store.ListJobs(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStore_DeleteProjectCascades(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	projectID, err := store.CreateProject(ctx, domain.CreateProjectInput{Name: "p"})
	require.NoError(t, err)
	_, err = store.CreateJob(ctx, domain.CreateJobInput{Title: "j", ProjectID: projectID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteProject(ctx, projectID))

	jobs, err := store.ListJobs(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_RegisterAndLogin(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	input := domain.RegisterInput{UserName: "alice", Email: "Alice@Example.com", Password: "secret"}
	require.NoError(t, store.Register(ctx, input))

	// 重复注册同一邮箱
	err := store.Register(ctx, domain.RegisterInput{UserName: "alice2", Email: "alice@example.com", Password: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDuplicate))

	// 重复用户名
	err = store.Register(ctx, domain.RegisterInput{UserName: "alice", Email: "other@example.com", Password: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDuplicate))

	// 邮箱不区分大小写
	token, err := store.Login(ctx, domain.LoginInput{Email: "ALICE@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)

	_, err = store.Login(ctx, domain.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.True(t, errors.IsUnauthorized(err))

	_, err = store.Login(ctx, domain.LoginInput{Email: "nobody@example.com", Password: "secret"})
	assert.True(t, errors.IsUnauthorized(err))
}
