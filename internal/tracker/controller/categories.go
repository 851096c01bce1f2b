package controller

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/tracker/database"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

const (
	demoUserName = "demo"
	demoPassword = "password"
)

var defaultCategories = []types.Category{
	{Name: "Health", Color: "#4CAF50"},
	{Name: "Work", Color: "#2196F3"},
	{Name: "Learning", Color: "#9C27B0"},
	{Name: "Mindfulness", Color: "#FF9800"},
	{Name: "Social", Color: "#E91E63"},
}

func (c *Controller) GetAllCategories(ctx context.Context) ([]*types.Category, error) {
	categories, err := c.db.GetAllCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetAllCategories failed: ")
	}
	return categories, nil
}

func (c *Controller) CreateCategory(ctx context.Context, request *types.CategoryRequest) (*types.Category, error) {
	if err := c.validateRequest(request); err != nil {
		return nil, err
	}
	category := &types.Category{Name: request.Name, Color: request.Color}
	if _, err := c.db.CreateCategory(ctx, category); err != nil {
		return nil, errors.Wrap(err, "db.CreateCategory failed: ")
	}
	return category, nil
}

// Seed inserts the default categories into an empty store and, when demoUser is set,
// registers the demo account unless it already exists.
func (c *Controller) Seed(ctx context.Context, demoUser bool) error {
	categories, err := c.db.GetAllCategories(ctx)
	if err != nil {
		return errors.Wrap(err, "db.GetAllCategories failed: ")
	}
	if len(categories) == 0 {
		for _, category := range defaultCategories {
			if _, err := c.db.CreateCategory(ctx, &category); err != nil {
				return errors.Wrap(err, "db.CreateCategory failed: ")
			}
		}
		c.logger.Info("default categories seeded", zap.Int("count", len(defaultCategories)))
	}
	if !demoUser {
		return nil
	}
	_, err = c.CreateNewUser(ctx, &types.UserRequest{UserName: demoUserName, Password: demoPassword})
	if errors.Is(err, database.ErrUserAlreadyExist) {
		return nil
	}
	return err
}
