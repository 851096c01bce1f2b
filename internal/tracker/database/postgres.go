package database

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/tracker/config"
	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

const (
	foreignKeyViolation = "23503"
	numericOutOfRange   = "22003"
)

const (
	userColumns      = "id, username, password, experience, prestige_level"
	taskColumns      = "id, title, user_id, category_id, experience_reward, is_completed, streak_count, last_completed_at, created_at"
	challengeColumns = "id, title, description, required_count, current_count, experience_reward, badge_name, user_id, is_completed, created_at"
	badgeColumns     = "id, name, icon, description, user_id, created_at"
)

type DB struct {
	Conn   *pgxpool.Pool
	logger *zap.Logger
}

func NewDB(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.New failed: ")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pool.Ping failed: ")
	}
	return &DB{Conn: pool, logger: logger.Named("postgres")}, nil
}

func (d *DB) CreateNewUser(ctx context.Context, user *types.User) (int, error) {
	row := d.Conn.QueryRow(ctx, "insert into users (username, password, experience, prestige_level) values ($1, $2, $3, $4) on conflict (username) do nothing returning id", user.UserName, user.Password, user.Experience, user.PrestigeLevel)
	err := row.Scan(&user.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserAlreadyExist
	}
	if err != nil {
		return 0, errors.Wrap(err, "row.Scan failed: ")
	}
	return user.ID, nil
}

func (d *DB) GetUser(ctx context.Context, userID int) (*types.User, error) {
	rows, _ := d.Conn.Query(ctx, "select "+userColumns+" from users where id = $1", userID)
	return collectOne[types.User](rows, ErrUserNotExist)
}

func (d *DB) GetUserByUserName(ctx context.Context, userName string) (*types.User, error) {
	rows, _ := d.Conn.Query(ctx, "select "+userColumns+" from users where username = $1", userName)
	return collectOne[types.User](rows, ErrUserNotExist)
}

func (d *DB) GetAllUsers(ctx context.Context) ([]*types.User, error) {
	rows, _ := d.Conn.Query(ctx, "select "+userColumns+" from users order by id")
	return collectAll[types.User](rows)
}

// AwardExperience adds delta in a single statement so concurrent awards do not lose updates.
func (d *DB) AwardExperience(ctx context.Context, userID, delta int) (*types.User, error) {
	if delta > leveling.MaxExperience || delta < leveling.MinExperience {
		return nil, ErrExperienceOutOfRange
	}
	rows, _ := d.Conn.Query(ctx, "update users set experience = experience + $2 where id = $1 returning "+userColumns, userID, int32(delta))
	user, err := collectOne[types.User](rows, ErrUserNotExist)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange {
		return nil, ErrExperienceOutOfRange
	}
	return user, err
}

func (d *DB) GetAllCategories(ctx context.Context) ([]*types.Category, error) {
	rows, _ := d.Conn.Query(ctx, "select id, name, color from categories order by id")
	return collectAll[types.Category](rows)
}

func (d *DB) GetCategory(ctx context.Context, categoryID int) (*types.Category, error) {
	rows, _ := d.Conn.Query(ctx, "select id, name, color from categories where id = $1", categoryID)
	return collectOne[types.Category](rows, ErrCategoryNotExist)
}

func (d *DB) CreateCategory(ctx context.Context, category *types.Category) (int, error) {
	row := d.Conn.QueryRow(ctx, "insert into categories (name, color) values ($1, $2) returning id", category.Name, category.Color)
	if err := row.Scan(&category.ID); err != nil {
		return 0, errors.Wrap(err, "row.Scan failed: ")
	}
	return category.ID, nil
}

func (d *DB) GetTask(ctx context.Context, taskID int) (*types.Task, error) {
	rows, _ := d.Conn.Query(ctx, "select "+taskColumns+" from tasks where id = $1", taskID)
	return collectOne[types.Task](rows, ErrTaskNotExist)
}

func (d *DB) GetTasksByUserID(ctx context.Context, userID int) ([]*types.Task, error) {
	rows, _ := d.Conn.Query(ctx, "select "+taskColumns+" from tasks where user_id = $1 order by id", userID)
	return collectAll[types.Task](rows)
}

func (d *DB) CreateNewTask(ctx context.Context, task *types.Task) (int, error) {
	row := d.Conn.QueryRow(ctx, "insert into tasks (title, user_id, category_id, experience_reward) values ($1, $2, $3, $4) returning id, created_at", task.Title, task.UserID, task.CategoryID, task.ExperienceReward)
	if err := row.Scan(&task.ID, &task.CreatedAt); err != nil {
		return 0, errors.Wrap(err, "row.Scan failed: ")
	}
	task.IsCompleted = false
	task.StreakCount = 0
	task.LastCompletedAt = nil
	return task.ID, nil
}

func (d *DB) UpdateTask(ctx context.Context, task *types.Task) error {
	tag, err := d.Conn.Exec(ctx, "update tasks set title = $2, category_id = $3, experience_reward = $4, is_completed = $5, streak_count = $6, last_completed_at = $7 where id = $1",
		task.ID, task.Title, task.CategoryID, task.ExperienceReward, task.IsCompleted, task.StreakCount, task.LastCompletedAt)
	return checkAffected(tag, err, ErrTaskNotExist)
}

func (d *DB) DeleteTask(ctx context.Context, taskID int) error {
	tag, err := d.Conn.Exec(ctx, "delete from tasks where id = $1", taskID)
	return checkAffected(tag, err, ErrTaskNotExist)
}

func (d *DB) GetChallenge(ctx context.Context, challengeID int) (*types.Challenge, error) {
	rows, _ := d.Conn.Query(ctx, "select "+challengeColumns+" from challenges where id = $1", challengeID)
	return collectOne[types.Challenge](rows, ErrChallengeNotExist)
}

func (d *DB) GetChallengesByUserID(ctx context.Context, userID int) ([]*types.Challenge, error) {
	rows, _ := d.Conn.Query(ctx, "select "+challengeColumns+" from challenges where user_id = $1 order by id", userID)
	return collectAll[types.Challenge](rows)
}

func (d *DB) CreateNewChallenge(ctx context.Context, challenge *types.Challenge) (int, error) {
	row := d.Conn.QueryRow(ctx, "insert into challenges (title, description, required_count, experience_reward, badge_name, user_id) values ($1, $2, $3, $4, $5, $6) returning id, created_at",
		challenge.Title, challenge.Description, challenge.RequiredCount, challenge.ExperienceReward, challenge.BadgeName, challenge.UserID)
	if err := row.Scan(&challenge.ID, &challenge.CreatedAt); err != nil {
		return 0, errors.Wrap(err, "row.Scan failed: ")
	}
	challenge.CurrentCount = 0
	challenge.IsCompleted = false
	return challenge.ID, nil
}

// UpdateChallenge never clears is_completed, whatever the caller passes.
func (d *DB) UpdateChallenge(ctx context.Context, challenge *types.Challenge) error {
	tag, err := d.Conn.Exec(ctx, "update challenges set current_count = $2, is_completed = is_completed or $3 where id = $1",
		challenge.ID, challenge.CurrentCount, challenge.IsCompleted)
	return checkAffected(tag, err, ErrChallengeNotExist)
}

func (d *DB) GetBadgesByUserID(ctx context.Context, userID int) ([]*types.Badge, error) {
	rows, _ := d.Conn.Query(ctx, "select "+badgeColumns+" from badges where user_id = $1 order by id", userID)
	return collectAll[types.Badge](rows)
}

func (d *DB) CreateBadge(ctx context.Context, badge *types.Badge) (int, error) {
	row := d.Conn.QueryRow(ctx, "insert into badges (name, icon, description, user_id) values ($1, $2, $3, $4) returning id, created_at", badge.Name, badge.Icon, badge.Description, badge.UserID)
	if err := row.Scan(&badge.ID, &badge.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return 0, ErrUserNotExist
		}
		return 0, errors.Wrap(err, "row.Scan failed: ")
	}
	return badge.ID, nil
}

func (d *DB) Close() error {
	d.Conn.Close()
	return nil
}

func collectOne[T any](rows pgx.Rows, notFound error) (*T, error) {
	result, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectExactlyOneRow failed: ")
	}
	return result, nil
}

func collectAll[T any](rows pgx.Rows) ([]*T, error) {
	result, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows failed: ")
	}
	return result, nil
}

func checkAffected(tag pgconn.CommandTag, err error, notFound error) error {
	if err != nil {
		return errors.Wrap(err, "conn.Exec failed: ")
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
