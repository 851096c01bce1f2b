package controller

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/pkg/metrics"
	"github.com/SakuraBurst/questtracker/internal/tracker/progression"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

func (c *Controller) CreateNewTask(ctx context.Context, request *types.TaskRequest) (*types.Task, error) {
	if err := c.validateRequest(request); err != nil {
		return nil, err
	}
	if _, err := c.db.GetUser(ctx, request.UserID); err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	if _, err := c.db.GetCategory(ctx, request.CategoryID); err != nil {
		return nil, errors.Wrap(err, "db.GetCategory failed: ")
	}
	task := &types.Task{
		Title:            request.Title,
		UserID:           request.UserID,
		CategoryID:       request.CategoryID,
		ExperienceReward: request.ExperienceReward,
	}
	if _, err := c.db.CreateNewTask(ctx, task); err != nil {
		return nil, errors.Wrap(err, "db.CreateNewTask failed: ")
	}
	return task, nil
}

func (c *Controller) GetUserTasks(ctx context.Context, userID int) ([]*types.Task, error) {
	if _, err := c.db.GetUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	tasks, err := c.db.GetTasksByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetTasksByUserID failed: ")
	}
	return tasks, nil
}

func (c *Controller) DeleteTask(ctx context.Context, taskID int) error {
	if err := c.db.DeleteTask(ctx, taskID); err != nil {
		return errors.Wrap(err, "db.DeleteTask failed: ")
	}
	return nil
}

// ToggleTaskCompletion sets the completion flag of a task. Experience is awarded to the
// owner only when the task goes from incomplete to complete.
func (c *Controller) ToggleTaskCompletion(ctx context.Context, taskID int, completed bool) (*types.TaskCompletion, error) {
	task, err := c.db.GetTask(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetTask failed: ")
	}
	unlock := c.locks.lock(task.UserID)
	defer unlock()

	// re-read under the owner's lock so two toggles cannot both see the old flag
	task, err = c.db.GetTask(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetTask failed: ")
	}
	outcome := progression.ToggleTaskCompletion(*task, completed, c.now())
	if err := c.ensureAwardFits(ctx, outcome.Award); err != nil {
		return nil, err
	}
	if err := c.db.UpdateTask(ctx, &outcome.Task); err != nil {
		return nil, errors.Wrap(err, "db.UpdateTask failed: ")
	}
	result := &types.TaskCompletion{Task: &outcome.Task}
	if outcome.Award == nil {
		return result, nil
	}
	metrics.TaskCompletions.Inc()
	_, reward, err := c.applyAward(ctx, *outcome.Award, sourceTask)
	if err != nil {
		return nil, err
	}
	result.Reward = reward
	c.logger.Info("task completed",
		zap.Int("task_id", outcome.Task.ID),
		zap.Int("user_id", outcome.Task.UserID),
		zap.Int("streak", outcome.Task.StreakCount),
	)
	return result, nil
}
