package router

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/tracker/config"
	"github.com/SakuraBurst/questtracker/internal/tracker/controller"
	"github.com/SakuraBurst/questtracker/internal/tracker/database"
	"github.com/SakuraBurst/questtracker/internal/tracker/router/middleware"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

type trackerController interface {
	CreateNewUser(ctx context.Context, request *types.UserRequest) (*types.Profile, error)
	AuthorizeUser(ctx context.Context, request *types.UserRequest) (string, *types.Profile, error)
	GetUserProfile(ctx context.Context, userID int) (*types.Profile, error)
	AwardExperience(ctx context.Context, userID, delta int) (*types.ExperienceUpdate, error)
	GetLeaderboard(ctx context.Context) ([]*types.LeaderboardEntry, error)
	GetAllCategories(ctx context.Context) ([]*types.Category, error)
	CreateCategory(ctx context.Context, request *types.CategoryRequest) (*types.Category, error)
	CreateNewTask(ctx context.Context, request *types.TaskRequest) (*types.Task, error)
	GetUserTasks(ctx context.Context, userID int) ([]*types.Task, error)
	DeleteTask(ctx context.Context, taskID int) error
	ToggleTaskCompletion(ctx context.Context, taskID int, completed bool) (*types.TaskCompletion, error)
	CreateNewChallenge(ctx context.Context, request *types.ChallengeRequest) (*types.Challenge, error)
	GetUserChallenges(ctx context.Context, userID int) ([]*types.Challenge, error)
	AdvanceChallengeProgress(ctx context.Context, challengeID, count int) (*types.ChallengeProgress, error)
	GetUserBadges(ctx context.Context, userID int) ([]*types.Badge, error)
	Close() error
}

type HttpRouter struct {
	controller trackerController
	*fiber.App
	validate  *validator.Validate
	appLogger *zap.Logger
	httpPort  string
}

const (
	internalServerErrorMessage = "internal server error"
	badRequestMessage          = "malformed request or invalid data"
)

func (r *HttpRouter) Run() error {
	return r.App.Listen(":" + r.httpPort)
}

func (r *HttpRouter) Close() error {
	if err := r.controller.Close(); err != nil {
		r.appLogger.Error("controller.Close failed: ", zap.Error(err))
	}
	return r.App.Shutdown()
}

func (r *HttpRouter) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

func (r *HttpRouter) Register(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return r.badRequest(ctx, err)
	}
	profile, err := r.controller.CreateNewUser(ctx.UserContext(), request)
	if err != nil {
		return r.fail(ctx, "controller.CreateNewUser", err)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(profile)
}

func (r *HttpRouter) Login(ctx *fiber.Ctx) error {
	request := &types.UserRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return r.badRequest(ctx, err)
	}
	if request.UserName == "" || request.Password == "" {
		return r.badRequest(ctx, nil)
	}
	token, profile, err := r.controller.AuthorizeUser(ctx.UserContext(), request)
	if err != nil {
		return r.fail(ctx, "controller.AuthorizeUser", err)
	}
	return ctx.JSON(fiber.Map{"status": "success", "token": token, "user": profile})
}

func (r *HttpRouter) GetUserProfile(ctx *fiber.Ctx) error {
	userID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	profile, err := r.controller.GetUserProfile(ctx.UserContext(), userID)
	if err != nil {
		return r.fail(ctx, "controller.GetUserProfile", err)
	}
	return ctx.JSON(profile)
}

func (r *HttpRouter) AwardExperience(ctx *fiber.Ctx) error {
	userID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	request := &types.ExperienceRequest{}
	if err := r.parseBody(ctx, request); err != nil {
		return r.badRequest(ctx, err)
	}
	update, err := r.controller.AwardExperience(ctx.UserContext(), userID, *request.Delta)
	if err != nil {
		return r.fail(ctx, "controller.AwardExperience", err)
	}
	return ctx.JSON(update)
}

func (r *HttpRouter) GetLeaderboard(ctx *fiber.Ctx) error {
	entries, err := r.controller.GetLeaderboard(ctx.UserContext())
	if err != nil {
		return r.fail(ctx, "controller.GetLeaderboard", err)
	}
	return ctx.JSON(entries)
}

func (r *HttpRouter) GetAllCategories(ctx *fiber.Ctx) error {
	categories, err := r.controller.GetAllCategories(ctx.UserContext())
	if err != nil {
		return r.fail(ctx, "controller.GetAllCategories", err)
	}
	return ctx.JSON(categories)
}

func (r *HttpRouter) CreateCategory(ctx *fiber.Ctx) error {
	request := &types.CategoryRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return r.badRequest(ctx, err)
	}
	category, err := r.controller.CreateCategory(ctx.UserContext(), request)
	if err != nil {
		return r.fail(ctx, "controller.CreateCategory", err)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(category)
}

func (r *HttpRouter) GetUserTasks(ctx *fiber.Ctx) error {
	userID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	tasks, err := r.controller.GetUserTasks(ctx.UserContext(), userID)
	if err != nil {
		return r.fail(ctx, "controller.GetUserTasks", err)
	}
	return ctx.JSON(tasks)
}

func (r *HttpRouter) CreateTask(ctx *fiber.Ctx) error {
	request := &types.TaskRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return r.badRequest(ctx, err)
	}
	task, err := r.controller.CreateNewTask(ctx.UserContext(), request)
	if err != nil {
		return r.fail(ctx, "controller.CreateNewTask", err)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(task)
}

func (r *HttpRouter) CompleteTask(ctx *fiber.Ctx) error {
	taskID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	request := &types.CompleteTaskRequest{}
	if err := r.parseBody(ctx, request); err != nil {
		return r.badRequest(ctx, err)
	}
	result, err := r.controller.ToggleTaskCompletion(ctx.UserContext(), taskID, *request.Completed)
	if err != nil {
		return r.fail(ctx, "controller.ToggleTaskCompletion", err)
	}
	return ctx.JSON(result)
}

func (r *HttpRouter) DeleteTask(ctx *fiber.Ctx) error {
	taskID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	if err := r.controller.DeleteTask(ctx.UserContext(), taskID); err != nil {
		return r.fail(ctx, "controller.DeleteTask", err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (r *HttpRouter) GetUserChallenges(ctx *fiber.Ctx) error {
	userID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	challenges, err := r.controller.GetUserChallenges(ctx.UserContext(), userID)
	if err != nil {
		return r.fail(ctx, "controller.GetUserChallenges", err)
	}
	return ctx.JSON(challenges)
}

func (r *HttpRouter) CreateChallenge(ctx *fiber.Ctx) error {
	request := &types.ChallengeRequest{}
	if err := ctx.BodyParser(request); err != nil {
		return r.badRequest(ctx, err)
	}
	challenge, err := r.controller.CreateNewChallenge(ctx.UserContext(), request)
	if err != nil {
		return r.fail(ctx, "controller.CreateNewChallenge", err)
	}
	ctx.Status(http.StatusCreated)
	return ctx.JSON(challenge)
}

func (r *HttpRouter) UpdateChallengeProgress(ctx *fiber.Ctx) error {
	challengeID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	request := &types.ChallengeProgressRequest{}
	if err := r.parseBody(ctx, request); err != nil {
		return r.badRequest(ctx, err)
	}
	result, err := r.controller.AdvanceChallengeProgress(ctx.UserContext(), challengeID, *request.CurrentCount)
	if err != nil {
		return r.fail(ctx, "controller.AdvanceChallengeProgress", err)
	}
	return ctx.JSON(result)
}

func (r *HttpRouter) GetUserBadges(ctx *fiber.Ctx) error {
	userID, err := paramID(ctx)
	if err != nil {
		return r.badRequest(ctx, err)
	}
	badges, err := r.controller.GetUserBadges(ctx.UserContext(), userID)
	if err != nil {
		return r.fail(ctx, "controller.GetUserBadges", err)
	}
	return ctx.JSON(badges)
}

func (r *HttpRouter) parseBody(ctx *fiber.Ctx, request any) error {
	if err := ctx.BodyParser(request); err != nil {
		return err
	}
	return r.validate.Struct(request)
}

func paramID(ctx *fiber.Ctx) (int, error) {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return 0, errors.Wrap(err, "strconv.Atoi failed: ")
	}
	if id <= 0 {
		return 0, errors.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}

func (r *HttpRouter) badRequest(ctx *fiber.Ctx, err error) error {
	if err != nil {
		r.appLogger.Debug("bad request", zap.String("path", ctx.Path()), zap.Error(err))
	}
	ctx.Status(http.StatusBadRequest)
	return ctx.JSON(fiber.Map{"status": "error", "message": badRequestMessage})
}

// fail maps controller errors onto responses. Anything unrecognized is a 500.
func (r *HttpRouter) fail(ctx *fiber.Ctx, op string, err error) error {
	status, message := http.StatusInternalServerError, internalServerErrorMessage
	switch {
	case errors.Is(err, database.ErrUserNotExist):
		status, message = http.StatusNotFound, "user not found"
	case errors.Is(err, database.ErrTaskNotExist):
		status, message = http.StatusNotFound, "task not found"
	case errors.Is(err, database.ErrChallengeNotExist):
		status, message = http.StatusNotFound, "challenge not found"
	case errors.Is(err, database.ErrCategoryNotExist):
		status, message = http.StatusNotFound, "category not found"
	case errors.Is(err, database.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, database.ErrUserAlreadyExist):
		status, message = http.StatusConflict, "user with this username already exists"
	case errors.Is(err, controller.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "wrong username or password"
	case errors.Is(err, controller.ErrInvalidInput):
		status, message = http.StatusBadRequest, badRequestMessage
	}
	if status == http.StatusInternalServerError {
		r.appLogger.Error(op+" failed: ", zap.Error(err))
	} else {
		r.appLogger.Info(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	ctx.Status(status)
	return ctx.JSON(fiber.Map{"status": "error", "message": message})
}

func CreateRouter(c trackerController, cfg *config.Config, logger *zap.Logger) *HttpRouter {
	appLogger := logger.Named("router")
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger(appLogger))
	app.Use(cors.New())

	r := &HttpRouter{controller: c, App: app, validate: validator.New(), appLogger: appLogger, httpPort: cfg.HttpPort}
	r.Get("/health", r.Health)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Post("/register", r.Register)
	api.Post("/login", r.Login)

	protected := middleware.Protected([]byte(cfg.JWTSecret))
	categories := api.Group("/categories", protected)
	categories.Get("/", r.GetAllCategories)
	categories.Post("/", r.CreateCategory)

	users := api.Group("/users", protected)
	users.Get("/leaderboard", r.GetLeaderboard)
	users.Get("/:id", r.GetUserProfile)
	users.Post("/:id/experience", r.AwardExperience)
	users.Get("/:id/tasks", r.GetUserTasks)
	users.Get("/:id/challenges", r.GetUserChallenges)
	users.Get("/:id/badges", r.GetUserBadges)

	tasks := api.Group("/tasks", protected)
	tasks.Post("/", r.CreateTask)
	tasks.Patch("/:id/complete", r.CompleteTask)
	tasks.Delete("/:id", r.DeleteTask)

	challenges := api.Group("/challenges", protected)
	challenges.Post("/", r.CreateChallenge)
	challenges.Patch("/:id/progress", r.UpdateChallengeProgress)
	return r
}
