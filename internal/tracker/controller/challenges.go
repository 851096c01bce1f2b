package controller

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/pkg/metrics"
	"github.com/SakuraBurst/questtracker/internal/tracker/progression"
	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

func (c *Controller) CreateNewChallenge(ctx context.Context, request *types.ChallengeRequest) (*types.Challenge, error) {
	if err := c.validateRequest(request); err != nil {
		return nil, err
	}
	if _, err := c.db.GetUser(ctx, request.UserID); err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	challenge := &types.Challenge{
		Title:            request.Title,
		Description:      request.Description,
		RequiredCount:    request.RequiredCount,
		ExperienceReward: request.ExperienceReward,
		BadgeName:        request.BadgeName,
		UserID:           request.UserID,
	}
	if _, err := c.db.CreateNewChallenge(ctx, challenge); err != nil {
		return nil, errors.Wrap(err, "db.CreateNewChallenge failed: ")
	}
	return challenge, nil
}

func (c *Controller) GetUserChallenges(ctx context.Context, userID int) ([]*types.Challenge, error) {
	if _, err := c.db.GetUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	challenges, err := c.db.GetChallengesByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetChallengesByUserID failed: ")
	}
	return challenges, nil
}

func (c *Controller) GetUserBadges(ctx context.Context, userID int) ([]*types.Badge, error) {
	if _, err := c.db.GetUser(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "db.GetUser failed: ")
	}
	badges, err := c.db.GetBadgesByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetBadgesByUserID failed: ")
	}
	return badges, nil
}

// AdvanceChallengeProgress stores a new progress count. The first time the count reaches
// the required count the challenge is latched complete, its reward is paid and its badge,
// if any, is granted. Later calls never pay again.
func (c *Controller) AdvanceChallengeProgress(ctx context.Context, challengeID, count int) (*types.ChallengeProgress, error) {
	if count < 0 {
		return nil, errors.Wrap(ErrInvalidInput, "negative progress count")
	}
	challenge, err := c.db.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetChallenge failed: ")
	}
	unlock := c.locks.lock(challenge.UserID)
	defer unlock()

	challenge, err = c.db.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, errors.Wrap(err, "db.GetChallenge failed: ")
	}
	outcome := progression.AdvanceChallengeProgress(*challenge, count)
	if err := c.ensureAwardFits(ctx, outcome.Award); err != nil {
		return nil, err
	}
	if err := c.db.UpdateChallenge(ctx, &outcome.Challenge); err != nil {
		return nil, errors.Wrap(err, "db.UpdateChallenge failed: ")
	}
	result := &types.ChallengeProgress{Challenge: &outcome.Challenge}
	if !outcome.Completed {
		return result, nil
	}
	metrics.ChallengesCompleted.Inc()

	reward := &types.Reward{}
	if outcome.Award != nil {
		_, reward, err = c.applyAward(ctx, *outcome.Award, sourceChallenge)
		if err != nil {
			return nil, err
		}
	}
	if outcome.Badge != nil {
		badge := outcome.Badge.Badge()
		if _, err := c.db.CreateBadge(ctx, badge); err != nil {
			return nil, errors.Wrap(err, "db.CreateBadge failed: ")
		}
		metrics.BadgesGranted.Inc()
		reward.Badge = badge
	}
	result.Reward = reward
	c.logger.Info("challenge completed",
		zap.Int("challenge_id", outcome.Challenge.ID),
		zap.Int("user_id", outcome.Challenge.UserID),
		zap.Bool("badge", outcome.Badge != nil),
	)
	return result, nil
}
