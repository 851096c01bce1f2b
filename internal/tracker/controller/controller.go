package controller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/SakuraBurst/questtracker/internal/pkg/metrics"
	"github.com/SakuraBurst/questtracker/internal/tracker/cache"
	"github.com/SakuraBurst/questtracker/internal/tracker/config"
	"github.com/SakuraBurst/questtracker/internal/tracker/database"
	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
	"github.com/SakuraBurst/questtracker/internal/tracker/progression"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	sourceTask      = "task"
	sourceChallenge = "challenge"
	sourceManual    = "manual"
)

type userDatabase interface {
	CreateNewUser(ctx context.Context, user *types.User) (int, error)
	GetUser(ctx context.Context, userID int) (*types.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*types.User, error)
	GetAllUsers(ctx context.Context) ([]*types.User, error)
	AwardExperience(ctx context.Context, userID, delta int) (*types.User, error)
}

type categoryDatabase interface {
	GetAllCategories(ctx context.Context) ([]*types.Category, error)
	GetCategory(ctx context.Context, categoryID int) (*types.Category, error)
	CreateCategory(ctx context.Context, category *types.Category) (int, error)
}

type taskDatabase interface {
	GetTask(ctx context.Context, taskID int) (*types.Task, error)
	GetTasksByUserID(ctx context.Context, userID int) ([]*types.Task, error)
	CreateNewTask(ctx context.Context, task *types.Task) (int, error)
	UpdateTask(ctx context.Context, task *types.Task) error
	DeleteTask(ctx context.Context, taskID int) error
}

type challengeDatabase interface {
	GetChallenge(ctx context.Context, challengeID int) (*types.Challenge, error)
	GetChallengesByUserID(ctx context.Context, userID int) ([]*types.Challenge, error)
	CreateNewChallenge(ctx context.Context, challenge *types.Challenge) (int, error)
	UpdateChallenge(ctx context.Context, challenge *types.Challenge) error
}

type badgeDatabase interface {
	GetBadgesByUserID(ctx context.Context, userID int) ([]*types.Badge, error)
	CreateBadge(ctx context.Context, badge *types.Badge) (int, error)
}

type storage interface {
	userDatabase
	categoryDatabase
	taskDatabase
	challengeDatabase
	badgeDatabase
	Close() error
}

type leaderboardCache interface {
	GetLeaderboard(ctx context.Context) ([]*types.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, entries []*types.LeaderboardEntry) error
	InvalidateLeaderboard(ctx context.Context) error
	Close() error
}

// Controller runs the progression rules against storage. Mutations that touch a user's
// experience are serialized per user; nothing stronger is promised across users.
type Controller struct {
	db        storage
	cache     leaderboardCache
	validate  *validator.Validate
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
	locks     *userLocks
	now       func() time.Time

	// boardMu orders leaderboard cache writes against invalidations; boardGen counts
	// invalidations so a board computed before one is never stored.
	boardMu  sync.Mutex
	boardGen uint64
}

func NewController(cfg *config.Config, db storage, lc leaderboardCache, logger *zap.Logger) *Controller {
	if lc == nil {
		lc = cache.Nop{}
	}
	return &Controller{
		db:        db,
		cache:     lc,
		validate:  validator.New(),
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		logger:    logger.Named("controller"),
		locks:     newUserLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for completion timestamps.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Controller) CreateNewUser(ctx context.Context, request *types.UserRequest) (*types.Profile, error) {
	if err := c.validateRequest(request); err != nil {
		return nil, err
	}
	hashedPass, err := cryptPassword([]byte(request.Password))
	if err != nil {
		return nil, errors.Wrap(err, "cryptPassword failed: ")
	}
	user := &types.User{UserName: request.UserName, Password: string(hashedPass)}
	if _, err := c.db.CreateNewUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "db.CreateNewUser failed: ")
	}
	c.invalidateLeaderboard(ctx)
	c.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("username", user.UserName))
	return types.NewProfile(user), nil
}

func (c *Controller) AuthorizeUser(ctx context.Context, request *types.UserRequest) (string, *types.Profile, error) {
	foundUser, err := c.db.GetUserByUserName(ctx, request.UserName)
	if errors.Is(err, database.ErrUserNotExist) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "db.GetUserByUserName failed: ")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.Password), []byte(request.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := c.createJWT(foundUser.ID)
	if err != nil {
		return "", nil, errors.Wrap(err, "createJWT failed: ")
	}
	return token, types.NewProfile(foundUser), nil
}

func (c *Controller) GetUserProfile(ctx context.Context, userID int) (*types.Profile, error) {
	user, err := c.db.GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	return types.NewProfile(user), nil
}

// AwardExperience adds delta to the user's cumulative experience. It is not idempotent.
func (c *Controller) AwardExperience(ctx context.Context, userID, delta int) (*types.ExperienceUpdate, error) {
	unlock := c.locks.lock(userID)
	defer unlock()
	user, reward, err := c.applyAward(ctx, progression.ExperienceAward{UserID: userID, Amount: delta}, sourceManual)
	if err != nil {
		return nil, err
	}
	return &types.ExperienceUpdate{User: types.NewProfile(user), Reward: reward}, nil
}

// GetLeaderboard ranks users by level, then by experience inside the level.
func (c *Controller) GetLeaderboard(ctx context.Context) ([]*types.LeaderboardEntry, error) {
	entries, err := c.cache.GetLeaderboard(ctx)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("cache.GetLeaderboard failed", zap.Error(err))
	}

	gen := c.leaderboardGeneration()
	users, err := c.db.GetAllUsers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetAllUsers failed: ")
	}
	entries = rankUsers(users)
	c.storeLeaderboard(ctx, gen, entries)
	return entries, nil
}

func (c *Controller) leaderboardGeneration() uint64 {
	c.boardMu.Lock()
	defer c.boardMu.Unlock()
	return c.boardGen
}

// storeLeaderboard caches entries only if no invalidation happened since gen was read.
func (c *Controller) storeLeaderboard(ctx context.Context, gen uint64, entries []*types.LeaderboardEntry) {
	c.boardMu.Lock()
	defer c.boardMu.Unlock()
	if c.boardGen != gen {
		c.logger.Debug("stale leaderboard not cached", zap.Uint64("generation", gen))
		return
	}
	if err := c.cache.SetLeaderboard(ctx, entries); err != nil {
		c.logger.Warn("cache.SetLeaderboard failed", zap.Error(err))
	}
}

func rankUsers(users []*types.User) []*types.LeaderboardEntry {
	entries := make([]*types.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		p := leveling.DeriveLevel(u.Experience)
		entries = append(entries, &types.LeaderboardEntry{
			ID:         u.ID,
			UserName:   u.UserName,
			Experience: u.Experience,
			Level:      p.Level,
			CurrentExp: p.CurrentExp,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if a.CurrentExp != b.CurrentExp {
			return a.CurrentExp > b.CurrentExp
		}
		return a.ID < b.ID
	})
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries
}

func (c *Controller) Close() error {
	cacheErr := c.cache.Close()
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "db.Close failed: ")
	}
	return cacheErr
}

// applyAward must run under the user's lock.
func (c *Controller) applyAward(ctx context.Context, award progression.ExperienceAward, source string) (*types.User, *types.Reward, error) {
	user, err := c.db.AwardExperience(ctx, award.UserID, award.Amount)
	if errors.Is(err, database.ErrExperienceOutOfRange) {
		return nil, nil, errors.Wrap(ErrInvalidInput, "experience overflow")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "db.AwardExperience failed: ")
	}
	before := leveling.DeriveLevel(user.Experience - award.Amount)
	after := leveling.DeriveLevel(user.Experience)
	reward := &types.Reward{
		ExperienceAwarded: award.Amount,
		LevelBefore:       before.Level,
		LevelAfter:        after.Level,
		LevelUp:           after.Level > before.Level,
	}
	if award.Amount > 0 {
		metrics.ExperienceAwarded.WithLabelValues(source).Add(float64(award.Amount))
	}
	c.invalidateLeaderboard(ctx)
	c.logger.Info("experience awarded",
		zap.Int("user_id", award.UserID),
		zap.Int("amount", award.Amount),
		zap.String("source", source),
		zap.Int("experience", user.Experience),
		zap.Bool("level_up", reward.LevelUp),
	)
	return user, reward, nil
}

// ensureAwardFits rejects an award the owner's total cannot absorb, so a cascade fails
// before any of its writes. Must run under the user's lock.
func (c *Controller) ensureAwardFits(ctx context.Context, award *progression.ExperienceAward) error {
	if award == nil {
		return nil
	}
	user, err := c.db.GetUser(ctx, award.UserID)
	if err != nil {
		return errors.Wrap(err, "db.GetUser failed: ")
	}
	if _, ok := leveling.AddExperience(user.Experience, award.Amount); !ok {
		return errors.Wrap(ErrInvalidInput, "experience overflow")
	}
	return nil
}

func (c *Controller) invalidateLeaderboard(ctx context.Context) {
	c.boardMu.Lock()
	defer c.boardMu.Unlock()
	c.boardGen++
	if err := c.cache.InvalidateLeaderboard(ctx); err != nil {
		c.logger.Warn("cache.InvalidateLeaderboard failed", zap.Error(err))
	}
}

func (c *Controller) validateRequest(request any) error {
	if err := c.validate.Struct(request); err != nil {
		return errors.Wrap(ErrInvalidInput, err.Error())
	}
	return nil
}

func (c *Controller) createJWT(id int) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["id"] = id
	claims["exp"] = c.now().Add(c.tokenTTL).Unix()

	return token.SignedString(c.jwtSecret)
}

func cryptPassword(pass []byte) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "bcrypt.GenerateFromPassword failed: ")
	}
	return hash, nil
}
