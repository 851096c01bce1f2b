package types

import (
	"time"

	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
)

// User.Experience is the only stored progression value; level is derived from it.
type User struct {
	ID            int    `json:"id" db:"id"`
	UserName      string `json:"username" db:"username"`
	Password      string `json:"-" db:"password"`
	Experience    int    `json:"experience" db:"experience"`
	PrestigeLevel int    `json:"prestigeLevel" db:"prestige_level"`
}

type Profile struct {
	ID            int    `json:"id"`
	UserName      string `json:"username"`
	Experience    int    `json:"experience"`
	PrestigeLevel int    `json:"prestigeLevel"`
	leveling.Progress
}

func NewProfile(u *User) *Profile {
	return &Profile{
		ID:            u.ID,
		UserName:      u.UserName,
		Experience:    u.Experience,
		PrestigeLevel: u.PrestigeLevel,
		Progress:      leveling.DeriveLevel(u.Experience),
	}
}

type Category struct {
	ID    int    `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Color string `json:"color" db:"color"`
}

type Task struct {
	ID               int        `json:"id" db:"id"`
	Title            string     `json:"title" db:"title"`
	UserID           int        `json:"userId" db:"user_id"`
	CategoryID       int        `json:"categoryId" db:"category_id"`
	ExperienceReward int        `json:"experienceReward" db:"experience_reward"`
	IsCompleted      bool       `json:"isCompleted" db:"is_completed"`
	StreakCount      int        `json:"streakCount" db:"streak_count"`
	LastCompletedAt  *time.Time `json:"lastCompletedAt" db:"last_completed_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
}

type Challenge struct {
	ID               int       `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	RequiredCount    int       `json:"requiredCount" db:"required_count"`
	CurrentCount     int       `json:"currentCount" db:"current_count"`
	ExperienceReward int       `json:"experienceReward" db:"experience_reward"`
	BadgeName        *string   `json:"badgeName" db:"badge_name"`
	UserID           int       `json:"userId" db:"user_id"`
	IsCompleted      bool      `json:"isCompleted" db:"is_completed"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// Badge is never modified after it is created.
type Badge struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Icon        string    `json:"icon" db:"icon"`
	Description string    `json:"description" db:"description"`
	UserID      int       `json:"userId" db:"user_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	ID         int    `json:"id"`
	UserName   string `json:"username"`
	Experience int    `json:"experience"`
	Level      int    `json:"level"`
	CurrentExp int    `json:"currentExp"`
}

// Reward summarizes what a single mutation granted the owning user.
type Reward struct {
	ExperienceAwarded int    `json:"experienceAwarded"`
	LevelBefore       int    `json:"levelBefore"`
	LevelAfter        int    `json:"levelAfter"`
	LevelUp           bool   `json:"levelUp"`
	Badge             *Badge `json:"badge,omitempty"`
}

type TaskCompletion struct {
	Task   *Task   `json:"task"`
	Reward *Reward `json:"reward,omitempty"`
}

type ChallengeProgress struct {
	Challenge *Challenge `json:"challenge"`
	Reward    *Reward    `json:"reward,omitempty"`
}

type ExperienceUpdate struct {
	User   *Profile `json:"user"`
	Reward *Reward  `json:"reward"`
}

type UserRequest struct {
	UserName string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=4"`
}

type CategoryRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required"`
}

type TaskRequest struct {
	Title            string `json:"title" validate:"required"`
	UserID           int    `json:"userId" validate:"required,gt=0"`
	CategoryID       int    `json:"categoryId" validate:"required,gt=0"`
	ExperienceReward int    `json:"experienceReward" validate:"gte=0,max=2147483647"`
}

type ChallengeRequest struct {
	Title            string  `json:"title" validate:"required"`
	Description      string  `json:"description" validate:"required"`
	RequiredCount    int     `json:"requiredCount" validate:"required,gt=0,max=2147483647"`
	ExperienceReward int     `json:"experienceReward" validate:"gte=0,max=2147483647"`
	BadgeName        *string `json:"badgeName"`
	UserID           int     `json:"userId" validate:"required,gt=0"`
}

type CompleteTaskRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type ChallengeProgressRequest struct {
	CurrentCount *int `json:"currentCount" validate:"required,gte=0,max=2147483647"`
}

type ExperienceRequest struct {
	Delta *int `json:"delta" validate:"required,min=-2147483648,max=2147483647"`
}
