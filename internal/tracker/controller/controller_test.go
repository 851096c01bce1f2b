package controller

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/tracker/cache"
	"github.com/SakuraBurst/questtracker/internal/tracker/config"
	"github.com/SakuraBurst/questtracker/internal/tracker/database"
	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	c        *Controller
	db       *database.MemoryDB
	userID   int
	category int
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	db := database.NewMemoryDB()
	f := &fixture{db: db, clock: testNow}
	f.c = NewController(cfg, db, cache.Nop{}, zap.NewNop())
	f.c.SetClock(func() time.Time { return f.clock })

	ctx := context.Background()
	require.NoError(t, f.c.Seed(ctx, false))
	profile, err := f.c.CreateNewUser(ctx, &types.UserRequest{UserName: "alice", Password: "secret"})
	require.NoError(t, err)
	f.userID = profile.ID
	categories, err := f.c.GetAllCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	f.category = categories[0].ID
	return f
}

func (f *fixture) task(t *testing.T, reward int) *types.Task {
	t.Helper()
	task, err := f.c.CreateNewTask(context.Background(), &types.TaskRequest{
		Title: "run", UserID: f.userID, CategoryID: f.category, ExperienceReward: reward,
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) challenge(t *testing.T, required, reward int, badge *string) *types.Challenge {
	t.Helper()
	ch, err := f.c.CreateNewChallenge(context.Background(), &types.ChallengeRequest{
		Title: "Marathon", Description: "run a lot", RequiredCount: required,
		ExperienceReward: reward, BadgeName: badge, UserID: f.userID,
	})
	require.NoError(t, err)
	return ch
}

func (f *fixture) experience(t *testing.T) int {
	t.Helper()
	p, err := f.c.GetUserProfile(context.Background(), f.userID)
	require.NoError(t, err)
	return p.Experience
}

func TestCreateNewUserAndAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.c.CreateNewUser(ctx, &types.UserRequest{UserName: "alice", Password: "other"})
	assert.ErrorIs(t, err, database.ErrUserAlreadyExist)

	_, err = f.c.CreateNewUser(ctx, &types.UserRequest{UserName: "al", Password: "secret"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	token, profile, err := f.c.AuthorizeUser(ctx, &types.UserRequest{UserName: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, f.userID, profile.ID)
	assert.Equal(t, 1, profile.Level)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil },
		jwt.WithTimeFunc(func() time.Time { return testNow }))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.EqualValues(t, f.userID, claims["id"])

	_, _, err = f.c.AuthorizeUser(ctx, &types.UserRequest{UserName: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.c.AuthorizeUser(ctx, &types.UserRequest{UserName: "nobody", Password: "secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAwardExperience(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	update, err := f.c.AwardExperience(ctx, f.userID, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, update.User.Experience)
	assert.Equal(t, 2, update.User.Level)
	assert.Equal(t, 50, update.User.CurrentExp)
	assert.Equal(t, 282, update.User.ExpForNextLevel)
	assert.True(t, update.Reward.LevelUp)
	assert.Equal(t, 1, update.Reward.LevelBefore)
	assert.Equal(t, 2, update.Reward.LevelAfter)

	update, err = f.c.AwardExperience(ctx, f.userID, -100)
	require.NoError(t, err)
	assert.Equal(t, 50, update.User.Experience)
	assert.Equal(t, 1, update.User.Level)
	assert.False(t, update.Reward.LevelUp)

	_, err = f.c.AwardExperience(ctx, 999, 10)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestToggleTaskCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, 50)

	res, err := f.c.ToggleTaskCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Task.IsCompleted)
	assert.Equal(t, 1, res.Task.StreakCount)
	require.NotNil(t, res.Task.LastCompletedAt)
	assert.Equal(t, testNow, *res.Task.LastCompletedAt)
	require.NotNil(t, res.Reward)
	assert.Equal(t, 50, res.Reward.ExperienceAwarded)
	assert.Equal(t, 50, f.experience(t))

	res, err = f.c.ToggleTaskCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	assert.Nil(t, res.Reward)
	assert.Equal(t, 50, f.experience(t))

	res, err = f.c.ToggleTaskCompletion(ctx, task.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Task.IsCompleted)
	assert.Equal(t, 1, res.Task.StreakCount)
	assert.Nil(t, res.Reward)

	f.clock = testNow.Add(20 * time.Hour)
	res, err = f.c.ToggleTaskCompletion(ctx, task.ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.Reward)
	assert.Equal(t, 100, f.experience(t))

	stored, err := f.db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, f.clock, *stored.LastCompletedAt)

	_, err = f.c.ToggleTaskCompletion(ctx, 404, true)
	assert.ErrorIs(t, err, database.ErrTaskNotExist)
}

func TestToggleTaskCompletionLevelUp(t *testing.T) {
	f := newFixture(t)
	task := f.task(t, 120)

	res, err := f.c.ToggleTaskCompletion(context.Background(), task.ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.Reward)
	assert.True(t, res.Reward.LevelUp)
	assert.Equal(t, 2, res.Reward.LevelAfter)
}

func TestConcurrentCompletionAwardsOnce(t *testing.T) {
	f := newFixture(t)
	task := f.task(t, 40)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.c.ToggleTaskCompletion(context.Background(), task.ID, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, f.experience(t))
}

func TestCreateNewTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.c.CreateNewTask(ctx, &types.TaskRequest{Title: "x", UserID: 99, CategoryID: f.category})
	assert.ErrorIs(t, err, database.ErrUserNotExist)

	_, err = f.c.CreateNewTask(ctx, &types.TaskRequest{Title: "x", UserID: f.userID, CategoryID: 99})
	assert.ErrorIs(t, err, database.ErrCategoryNotExist)

	_, err = f.c.CreateNewTask(ctx, &types.TaskRequest{Title: "", UserID: f.userID, CategoryID: f.category})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.c.CreateNewTask(ctx, &types.TaskRequest{Title: "x", UserID: f.userID, CategoryID: f.category, ExperienceReward: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, 10)

	require.NoError(t, f.c.DeleteTask(ctx, task.ID))
	tasks, err := f.c.GetUserTasks(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.ErrorIs(t, f.c.DeleteTask(ctx, task.ID), database.ErrTaskNotExist)
}

func TestAdvanceChallengeProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	badge := "Runner"
	ch := f.challenge(t, 3, 200, &badge)

	res, err := f.c.AdvanceChallengeProgress(ctx, ch.ID, 2)
	require.NoError(t, err)
	assert.False(t, res.Challenge.IsCompleted)
	assert.Nil(t, res.Reward)
	assert.Equal(t, 0, f.experience(t))

	res, err = f.c.AdvanceChallengeProgress(ctx, ch.ID, 3)
	require.NoError(t, err)
	assert.True(t, res.Challenge.IsCompleted)
	require.NotNil(t, res.Reward)
	assert.Equal(t, 200, res.Reward.ExperienceAwarded)
	require.NotNil(t, res.Reward.Badge)
	assert.Equal(t, "Runner", res.Reward.Badge.Name)
	assert.Equal(t, "award", res.Reward.Badge.Icon)
	assert.Equal(t, "Completed Marathon challenge", res.Reward.Badge.Description)
	assert.Equal(t, 200, f.experience(t))

	res, err = f.c.AdvanceChallengeProgress(ctx, ch.ID, 10)
	require.NoError(t, err)
	assert.True(t, res.Challenge.IsCompleted)
	assert.Nil(t, res.Reward)

	res, err = f.c.AdvanceChallengeProgress(ctx, ch.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Challenge.IsCompleted)
	assert.Equal(t, 0, res.Challenge.CurrentCount)

	badges, err := f.c.GetUserBadges(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
	assert.Equal(t, 200, f.experience(t))
}

func TestAdvanceChallengeProgressWithoutBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.challenge(t, 1, 30, nil)

	res, err := f.c.AdvanceChallengeProgress(ctx, ch.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, res.Reward)
	assert.Nil(t, res.Reward.Badge)

	badges, err := f.c.GetUserBadges(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	_, err = f.c.AdvanceChallengeProgress(ctx, ch.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.c.AdvanceChallengeProgress(ctx, 404, 1)
	assert.ErrorIs(t, err, database.ErrChallengeNotExist)
}

func TestGetLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob, err := f.c.CreateNewUser(ctx, &types.UserRequest{UserName: "bob", Password: "secret"})
	require.NoError(t, err)
	carol, err := f.c.CreateNewUser(ctx, &types.UserRequest{UserName: "carol", Password: "secret"})
	require.NoError(t, err)

	_, err = f.c.AwardExperience(ctx, f.userID, 90)
	require.NoError(t, err)
	_, err = f.c.AwardExperience(ctx, bob.ID, 400)
	require.NoError(t, err)
	_, err = f.c.AwardExperience(ctx, carol.ID, 90)
	require.NoError(t, err)

	entries, err := f.c.GetLeaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "bob", entries[0].UserName)
	assert.Equal(t, 3, entries[0].Level)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "alice", entries[1].UserName)
	assert.Equal(t, "carol", entries[2].UserName)
	assert.Equal(t, 3, entries[2].Rank)
}

type countingCache struct {
	cache.Nop
	stored      []*types.LeaderboardEntry
	invalidated int
}

func (c *countingCache) GetLeaderboard(context.Context) ([]*types.LeaderboardEntry, error) {
	if c.stored == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.stored, nil
}

func (c *countingCache) SetLeaderboard(_ context.Context, entries []*types.LeaderboardEntry) error {
	c.stored = entries
	return nil
}

func (c *countingCache) InvalidateLeaderboard(context.Context) error {
	c.stored = nil
	c.invalidated++
	return nil
}

func TestLeaderboardCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lc := &countingCache{}
	f.c.cache = lc

	first, err := f.c.GetLeaderboard(ctx)
	require.NoError(t, err)
	require.NotNil(t, lc.stored)

	again, err := f.c.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Same(t, first[0], again[0])

	_, err = f.c.AwardExperience(ctx, f.userID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, lc.invalidated)

	fresh, err := f.c.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh[0].Experience)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.c.Seed(ctx, true))
	require.NoError(t, f.c.Seed(ctx, true))

	categories, err := f.c.GetAllCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, len(defaultCategories))

	_, _, err = f.c.AuthorizeUser(ctx, &types.UserRequest{UserName: demoUserName, Password: demoPassword})
	assert.NoError(t, err)
}

func TestGetUserProfileNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.GetUserProfile(context.Background(), 42)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestAwardExperienceOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	update, err := f.c.AwardExperience(ctx, f.userID, leveling.MaxExperience)
	require.NoError(t, err)
	levelAtMax := update.User.Level

	_, err = f.c.AwardExperience(ctx, f.userID, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.c.AwardExperience(ctx, f.userID, math.MaxInt64)
	assert.ErrorIs(t, err, ErrInvalidInput)

	profile, err := f.c.GetUserProfile(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, leveling.MaxExperience, profile.Experience)
	assert.Equal(t, levelAtMax, profile.Level)
}

func TestTaskAwardOverflowLeavesTaskUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, 10)

	_, err := f.c.AwardExperience(ctx, f.userID, leveling.MaxExperience-5)
	require.NoError(t, err)

	_, err = f.c.ToggleTaskCompletion(ctx, task.ID, true)
	assert.ErrorIs(t, err, ErrInvalidInput)

	stored, err := f.db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)
	assert.Nil(t, stored.LastCompletedAt)
	assert.Equal(t, leveling.MaxExperience-5, f.experience(t))
}

func TestChallengeAwardOverflowKeepsChallengeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	badge := "Runner"
	ch := f.challenge(t, 1, 10, &badge)

	_, err := f.c.AwardExperience(ctx, f.userID, leveling.MaxExperience)
	require.NoError(t, err)

	_, err = f.c.AdvanceChallengeProgress(ctx, ch.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	stored, err := f.db.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)
	badges, err := f.c.GetUserBadges(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, badges)
}

// racingStore runs hook once, right after the users for a leaderboard were read.
type racingStore struct {
	*database.MemoryDB
	hook func()
}

func (s *racingStore) GetAllUsers(ctx context.Context) ([]*types.User, error) {
	users, err := s.MemoryDB.GetAllUsers(ctx)
	if s.hook != nil {
		hook := s.hook
		s.hook = nil
		hook()
	}
	return users, err
}

func TestLeaderboardNotCachedAfterConcurrentAward(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryDB: database.NewMemoryDB()}
	lc := &countingCache{}
	cfg := &config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	c := NewController(cfg, store, lc, zap.NewNop())

	profile, err := c.CreateNewUser(ctx, &types.UserRequest{UserName: "alice", Password: "secret"})
	require.NoError(t, err)

	store.hook = func() {
		_, err := c.AwardExperience(ctx, profile.ID, 7)
		require.NoError(t, err)
	}
	stale, err := c.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stale[0].Experience)
	assert.Nil(t, lc.stored)

	fresh, err := c.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, fresh[0].Experience)
	require.NotNil(t, lc.stored)
	assert.Equal(t, 7, lc.stored[0].Experience)
}
