// Package progression holds the reward rules applied when tasks are completed and
// challenges advance. Functions here are pure: they take an entity snapshot and return
// the updated entity together with the grants the caller must persist.
package progression

import (
	"fmt"
	"math"
	"time"

	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

const (
	// StreakWindowDays is the largest whole-day gap that keeps a streak alive.
	StreakWindowDays = 1

	DefaultBadgeIcon = "award"
)

type ExperienceAward struct {
	UserID int
	Amount int
}

type BadgeGrant struct {
	UserID      int
	Name        string
	Icon        string
	Description string
}

func (g BadgeGrant) Badge() *types.Badge {
	return &types.Badge{
		Name:        g.Name,
		Icon:        g.Icon,
		Description: g.Description,
		UserID:      g.UserID,
	}
}

type TaskOutcome struct {
	Task types.Task
	// Award is set only on the incomplete -> complete edge.
	Award *ExperienceAward
}

type ChallengeOutcome struct {
	Challenge types.Challenge
	// Completed reports that this call latched the challenge.
	Completed bool
	Award     *ExperienceAward
	Badge     *BadgeGrant
}

// ToggleTaskCompletion applies a completion toggle at time now.
//
// Clearing the flag leaves streak and timestamp alone. Setting it restarts the streak at 1
// when the task was already complete or was never completed; otherwise the previous streak
// is kept if the last completion is at most StreakWindowDays whole days old, and reset to 1
// if not. The streak is never incremented here.
func ToggleTaskCompletion(task types.Task, completed bool, now time.Time) TaskOutcome {
	if !completed {
		task.IsCompleted = false
		return TaskOutcome{Task: task}
	}

	wasCompleted := task.IsCompleted
	switch {
	case wasCompleted || task.LastCompletedAt == nil:
		task.StreakCount = 1
	case daysBetween(*task.LastCompletedAt, now) <= StreakWindowDays:
		// kept as is
	default:
		task.StreakCount = 1
	}

	completedAt := now
	task.LastCompletedAt = &completedAt
	task.IsCompleted = true

	outcome := TaskOutcome{Task: task}
	if !wasCompleted {
		outcome.Award = &ExperienceAward{UserID: task.UserID, Amount: task.ExperienceReward}
	}
	return outcome
}

// AdvanceChallengeProgress stores count as the new progress, even when it is lower than
// the stored one. Crossing RequiredCount on an active challenge latches it and emits the
// experience award and, when the challenge names one, a badge. A completed challenge never
// emits anything again.
func AdvanceChallengeProgress(challenge types.Challenge, count int) ChallengeOutcome {
	challenge.CurrentCount = count
	outcome := ChallengeOutcome{Challenge: challenge}
	if challenge.IsCompleted || challenge.CurrentCount < challenge.RequiredCount {
		return outcome
	}

	outcome.Challenge.IsCompleted = true
	outcome.Completed = true
	outcome.Award = &ExperienceAward{UserID: challenge.UserID, Amount: challenge.ExperienceReward}
	if challenge.BadgeName != nil && *challenge.BadgeName != "" {
		outcome.Badge = &BadgeGrant{
			UserID:      challenge.UserID,
			Name:        *challenge.BadgeName,
			Icon:        DefaultBadgeIcon,
			Description: fmt.Sprintf("Completed %s challenge", challenge.Title),
		}
	}
	return outcome
}

// daysBetween is floor((to - from) / 24h).
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
