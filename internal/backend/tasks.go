package backend

import (
	"context"
	"fmt"
	"net/http"

	"favorsweb/internal/domain"
)

type TasksAPI struct{ c *Client }

func (t *TasksAPI) AcceptPost(ctx context.Context, postID int64) (domain.TaskAssignment, error) {
	return doJSON[domain.TaskAssignment](ctx, t.c, call{
		op:     "tasks.accept",
		method: http.MethodPost,
		path:   fmt.Sprintf("/tasks/posts/%d/accept", postID),
		auth:   true,
	})
}

func (t *TasksAPI) MarkInProgress(ctx context.Context, taskID int64) (domain.TaskAssignment, error) {
	return doJSON[domain.TaskAssignment](ctx, t.c, call{
		op:     "tasks.in_progress",
		method: http.MethodPut,
		path:   fmt.Sprintf("/tasks/%d/in-progress", taskID),
		auth:   true,
	})
}

func (t *TasksAPI) MarkComplete(ctx context.Context, taskID int64) (domain.TaskAssignment, error) {
	return doJSON[domain.TaskAssignment](ctx, t.c, call{
		op:     "tasks.complete",
		method: http.MethodPut,
		path:   fmt.Sprintf("/tasks/%d/complete", taskID),
		auth:   true,
	})
}
