package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/content"
	"github.com/sharesphere/sharesphere/pkg/observability"
	"github.com/sharesphere/sharesphere/pkg/spheres"
)

// Service implements moderation actions and ban management on top of the
// authorization service's snapshots, locks, and invalidation.
type Service struct {
	store   *Store
	authz   *authz.Service
	spheres *spheres.Service
	content *content.Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the moderation service. metrics may be nil.
func NewService(store *Store, authzService *authz.Service, sphereService *spheres.Service, contentService *content.Service, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		authz:   authzService,
		spheres: sphereService,
		content: contentService,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Service) moderationWritten(target string) {
	if s.metrics != nil {
		s.metrics.ModerationActionsTotal.WithLabelValues(target).Inc()
	}
}

// ModeratePost records a moderation action on the post. Requires
// Moderate or better in the post's sphere. Re-moderation overwrites the
// previous record.
func (s *Service) ModeratePost(ctx context.Context, postID, ruleID int64, message string, moderator *authz.User) (*content.Post, error) {
	post, err := s.content.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := moderator.CheckPermissions(post.SphereName, authz.PermissionModerate); err != nil {
		return nil, err
	}

	rule, err := s.spheres.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	err = s.store.ModeratePost(ctx, postID, ModerationUpdate{
		ModeratorID:      moderator.UserID,
		ModeratorName:    moderator.Username,
		ModeratorMessage: message,
		RuleID:           rule.RuleID,
		RuleTitle:        rule.Title,
	})
	if err != nil {
		return nil, err
	}

	s.moderationWritten("post")
	s.logger.WithSphere(post.SphereName).WithFields(map[string]interface{}{
		"post_id":      postID,
		"rule_id":      ruleID,
		"moderator_id": moderator.UserID,
	}).Info("post moderated")

	return s.content.GetPost(ctx, postID)
}

// ModerateComment records a moderation action on the comment.
func (s *Service) ModerateComment(ctx context.Context, commentID, ruleID int64, message string, moderator *authz.User) (*content.Comment, error) {
	comment, err := s.content.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := moderator.CheckPermissions(comment.SphereName, authz.PermissionModerate); err != nil {
		return nil, err
	}

	rule, err := s.spheres.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	err = s.store.ModerateComment(ctx, commentID, ModerationUpdate{
		ModeratorID:      moderator.UserID,
		ModeratorName:    moderator.Username,
		ModeratorMessage: message,
		RuleID:           rule.RuleID,
		RuleTitle:        rule.Title,
	})
	if err != nil {
		return nil, err
	}

	s.moderationWritten("comment")
	s.logger.WithSphere(comment.SphereName).WithFields(map[string]interface{}{
		"comment_id":   commentID,
		"rule_id":      ruleID,
		"moderator_id": moderator.UserID,
	}).Info("comment moderated")

	return s.content.GetComment(ctx, commentID)
}

// banUntil maps a duration in days onto a ban horizon. nil means
// permanent; zero means no ban at all, which callers treat as a
// moderate-only action.
func banUntil(durationDays *int, now time.Time) (until *time.Time, skip bool) {
	if durationDays == nil {
		return nil, false
	}
	if *durationDays <= 0 {
		return nil, true
	}
	t := now.Add(time.Duration(*durationDays) * 24 * time.Hour)
	return &t, false
}

// BanUserFromSphere bans the target from the sphere. The moderator needs
// Ban or better there; a target who holds Moderate or better in the
// sphere, or any global role, is immune. durationDays nil makes the ban
// permanent and zero records nothing, returning (nil, nil).
func (s *Service) BanUserFromSphere(ctx context.Context, targetUserID int64, sphereName string, postID int64, commentID *int64, ruleID int64, moderator *authz.User, durationDays *int) (*UserBan, error) {
	if err := moderator.CheckPermissions(sphereName, authz.PermissionBan); err != nil {
		return nil, err
	}

	target, err := s.authz.GetUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.Resolve(sphereName) >= authz.PermissionModerate || target.AdminRole != authz.AdminRoleNone {
		return nil, apperr.ErrInsufficientPrivileges
	}

	until, skip := banUntil(durationDays, time.Now().UTC())
	if skip {
		return nil, nil
	}

	sphere, err := s.spheres.GetSphere(ctx, sphereName)
	if err != nil {
		return nil, err
	}

	var ban *UserBan
	err = s.authz.Locks().WithLock(targetUserID, func() error {
		var banErr error
		ban, banErr = s.store.CreateBan(ctx, BanParams{
			UserID:      targetUserID,
			Username:    target.Username,
			SphereID:    &sphere.SphereID,
			SphereName:  &sphere.SphereName,
			PostID:      postID,
			CommentID:   commentID,
			RuleID:      ruleID,
			ModeratorID: moderator.UserID,
			Until:       until,
		})
		return banErr
	})
	if err != nil {
		return nil, err
	}

	s.authz.InvalidateUser(ctx, targetUserID)
	s.banIssued(ban)

	s.logger.WithSphere(sphereName).WithFields(map[string]interface{}{
		"ban_id":         ban.BanID,
		"target_user_id": targetUserID,
		"moderator_id":   moderator.UserID,
		"permanent":      ban.Permanent(),
	}).Info("user banned from sphere")
	return ban, nil
}

// BanUserGlobally bans the target from the whole site. Requires a global
// moderator or admin; other global role holders are immune.
func (s *Service) BanUserGlobally(ctx context.Context, targetUserID, postID int64, commentID *int64, ruleID int64, moderator *authz.User, durationDays *int) (*UserBan, error) {
	if err := moderator.CheckAdminRole(authz.AdminRoleModerator); err != nil {
		return nil, err
	}

	target, err := s.authz.GetUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.AdminRole != authz.AdminRoleNone {
		return nil, apperr.ErrInsufficientPrivileges
	}

	until, skip := banUntil(durationDays, time.Now().UTC())
	if skip {
		return nil, nil
	}

	var ban *UserBan
	err = s.authz.Locks().WithLock(targetUserID, func() error {
		var banErr error
		ban, banErr = s.store.CreateBan(ctx, BanParams{
			UserID:      targetUserID,
			Username:    target.Username,
			PostID:      postID,
			CommentID:   commentID,
			RuleID:      ruleID,
			ModeratorID: moderator.UserID,
			Until:       until,
		})
		return banErr
	})
	if err != nil {
		return nil, err
	}

	s.authz.InvalidateUser(ctx, targetUserID)
	s.banIssued(ban)

	s.logger.WithFields(map[string]interface{}{
		"ban_id":         ban.BanID,
		"target_user_id": targetUserID,
		"moderator_id":   moderator.UserID,
		"permanent":      ban.Permanent(),
	}).Info("user banned globally")
	return ban, nil
}

func (s *Service) banIssued(ban *UserBan) {
	if s.metrics == nil {
		return
	}
	kind := "temporary"
	if ban.Permanent() {
		kind = "permanent"
	}
	s.metrics.BansIssuedTotal.WithLabelValues(kind).Inc()
}

// RemoveUserBan lifts a ban. A sphere ban needs Ban or better in that
// sphere; a site-wide ban needs a global moderator or admin.
func (s *Service) RemoveUserBan(ctx context.Context, banID int64, grantor *authz.User) (*UserBan, error) {
	ban, err := s.store.GetBan(ctx, banID)
	if err != nil {
		return nil, err
	}

	if ban.SphereName != nil {
		if err := grantor.CheckPermissions(*ban.SphereName, authz.PermissionBan); err != nil {
			return nil, err
		}
	} else {
		if err := grantor.CheckAdminRole(authz.AdminRoleModerator); err != nil {
			return nil, err
		}
	}

	lifted, err := s.store.RemoveBan(ctx, banID)
	if err != nil {
		return nil, err
	}

	s.authz.InvalidateUser(ctx, lifted.UserID)
	if s.metrics != nil {
		s.metrics.BansLiftedTotal.Inc()
	}

	s.logger.WithFields(map[string]interface{}{
		"ban_id":         banID,
		"target_user_id": lifted.UserID,
		"grantor_id":     grantor.UserID,
	}).Info("ban lifted")
	return lifted, nil
}

// GetSphereBanVec lists the sphere's active bans, filtered by an
// optional username prefix.
func (s *Service) GetSphereBanVec(ctx context.Context, sphereName, usernamePrefix string) ([]UserBan, error) {
	return s.store.GetSphereBanVec(ctx, sphereName, usernamePrefix)
}

// ModerateAndBanPost moderates the post and then bans its author on the
// same rule. A zero duration moderates without banning.
func (s *Service) ModerateAndBanPost(ctx context.Context, postID, ruleID int64, message string, moderator *authz.User, durationDays *int) (*content.Post, *UserBan, error) {
	post, err := s.ModeratePost(ctx, postID, ruleID, message, moderator)
	if err != nil {
		return nil, nil, err
	}

	ban, err := s.BanUserFromSphere(ctx, post.AuthorID, post.SphereName, postID, nil, ruleID, moderator, durationDays)
	if err != nil {
		return nil, nil, fmt.Errorf("post moderated but ban failed: %w", err)
	}
	return post, ban, nil
}

// ModerateAndBanComment moderates the comment and then bans its author.
func (s *Service) ModerateAndBanComment(ctx context.Context, commentID, ruleID int64, message string, moderator *authz.User, durationDays *int) (*content.Comment, *UserBan, error) {
	comment, err := s.ModerateComment(ctx, commentID, ruleID, message, moderator)
	if err != nil {
		return nil, nil, err
	}

	ban, err := s.BanUserFromSphere(ctx, comment.AuthorID, comment.SphereName, comment.PostID, &commentID, ruleID, moderator, durationDays)
	if err != nil {
		return nil, nil, fmt.Errorf("comment moderated but ban failed: %w", err)
	}
	return comment, ban, nil
}
