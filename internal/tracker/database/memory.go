package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

// MemoryDB keeps every entity in process memory. Identifiers start at 1 and grow
// monotonically per entity kind. Returned values are copies.
type MemoryDB struct {
	mu         sync.RWMutex
	users      map[int]types.User
	categories map[int]types.Category
	tasks      map[int]types.Task
	challenges map[int]types.Challenge
	badges     map[int]types.Badge

	userSeq, categorySeq, taskSeq, challengeSeq, badgeSeq int

	now func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:      map[int]types.User{},
		categories: map[int]types.Category{},
		tasks:      map[int]types.Task{},
		challenges: map[int]types.Challenge{},
		badges:     map[int]types.Badge{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (d *MemoryDB) CreateNewUser(_ context.Context, user *types.User) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.UserName == user.UserName {
			return 0, ErrUserAlreadyExist
		}
	}
	d.userSeq++
	user.ID = d.userSeq
	d.users[user.ID] = *user
	return user.ID, nil
}

func (d *MemoryDB) GetUser(_ context.Context, userID int) (*types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, ErrUserNotExist
	}
	return &u, nil
}

func (d *MemoryDB) GetUserByUserName(_ context.Context, userName string) (*types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.UserName == userName {
			return &u, nil
		}
	}
	return nil, ErrUserNotExist
}

func (d *MemoryDB) GetAllUsers(_ context.Context) ([]*types.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]*types.User, 0, len(d.users))
	for _, id := range sortedKeys(d.users) {
		u := d.users[id]
		result = append(result, &u)
	}
	return result, nil
}

func (d *MemoryDB) AwardExperience(_ context.Context, userID, delta int) (*types.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, ErrUserNotExist
	}
	next, ok := leveling.AddExperience(u.Experience, delta)
	if !ok {
		return nil, ErrExperienceOutOfRange
	}
	u.Experience = next
	d.users[userID] = u
	return &u, nil
}

func (d *MemoryDB) GetAllCategories(_ context.Context) ([]*types.Category, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]*types.Category, 0, len(d.categories))
	for _, id := range sortedKeys(d.categories) {
		c := d.categories[id]
		result = append(result, &c)
	}
	return result, nil
}

func (d *MemoryDB) GetCategory(_ context.Context, categoryID int) (*types.Category, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.categories[categoryID]
	if !ok {
		return nil, ErrCategoryNotExist
	}
	return &c, nil
}

func (d *MemoryDB) CreateCategory(_ context.Context, category *types.Category) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.categorySeq++
	category.ID = d.categorySeq
	d.categories[category.ID] = *category
	return category.ID, nil
}

func (d *MemoryDB) GetTask(_ context.Context, taskID int) (*types.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotExist
	}
	return &t, nil
}

func (d *MemoryDB) GetTasksByUserID(_ context.Context, userID int) ([]*types.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := []*types.Task{}
	for _, id := range sortedKeys(d.tasks) {
		t := d.tasks[id]
		if t.UserID == userID {
			result = append(result, &t)
		}
	}
	return result, nil
}

func (d *MemoryDB) CreateNewTask(_ context.Context, task *types.Task) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taskSeq++
	task.ID = d.taskSeq
	task.IsCompleted = false
	task.StreakCount = 0
	task.LastCompletedAt = nil
	task.CreatedAt = d.now()
	d.tasks[task.ID] = *task
	return task.ID, nil
}

func (d *MemoryDB) UpdateTask(_ context.Context, task *types.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tasks[task.ID]; !ok {
		return ErrTaskNotExist
	}
	d.tasks[task.ID] = *task
	return nil
}

func (d *MemoryDB) DeleteTask(_ context.Context, taskID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tasks[taskID]; !ok {
		return ErrTaskNotExist
	}
	delete(d.tasks, taskID)
	return nil
}

func (d *MemoryDB) GetChallenge(_ context.Context, challengeID int) (*types.Challenge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.challenges[challengeID]
	if !ok {
		return nil, ErrChallengeNotExist
	}
	return &c, nil
}

func (d *MemoryDB) GetChallengesByUserID(_ context.Context, userID int) ([]*types.Challenge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := []*types.Challenge{}
	for _, id := range sortedKeys(d.challenges) {
		c := d.challenges[id]
		if c.UserID == userID {
			result = append(result, &c)
		}
	}
	return result, nil
}

func (d *MemoryDB) CreateNewChallenge(_ context.Context, challenge *types.Challenge) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.challengeSeq++
	challenge.ID = d.challengeSeq
	challenge.CurrentCount = 0
	challenge.IsCompleted = false
	challenge.CreatedAt = d.now()
	d.challenges[challenge.ID] = *challenge
	return challenge.ID, nil
}

func (d *MemoryDB) UpdateChallenge(_ context.Context, challenge *types.Challenge) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.challenges[challenge.ID]
	if !ok {
		return ErrChallengeNotExist
	}
	updated := *challenge
	updated.IsCompleted = stored.IsCompleted || challenge.IsCompleted
	d.challenges[challenge.ID] = updated
	return nil
}

func (d *MemoryDB) GetBadgesByUserID(_ context.Context, userID int) ([]*types.Badge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := []*types.Badge{}
	for _, id := range sortedKeys(d.badges) {
		b := d.badges[id]
		if b.UserID == userID {
			result = append(result, &b)
		}
	}
	return result, nil
}

func (d *MemoryDB) CreateBadge(_ context.Context, badge *types.Badge) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badgeSeq++
	badge.ID = d.badgeSeq
	badge.CreatedAt = d.now()
	d.badges[badge.ID] = *badge
	return badge.ID, nil
}

func (d *MemoryDB) Close() error {
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
