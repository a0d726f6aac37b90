package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharesphere/sharesphere/pkg/apperr"
	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/observability"
	"github.com/sharesphere/sharesphere/pkg/spheres"
)

// Service gates content creation on the author's ban status.
type Service struct {
	store   *Store
	spheres *spheres.Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the content service. metrics may be nil.
func NewService(store *Store, sphereService *spheres.Service, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		spheres: sphereService,
		logger:  logger,
		metrics: metrics,
	}
}

// Store exposes the underlying store for the moderation service.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) banDenied(err error) {
	if s.metrics == nil {
		return
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeGlobalBanUntil, apperr.CodePermanentGlobalBan:
		s.metrics.BanDenialsTotal.WithLabelValues("global").Inc()
	case apperr.CodeSphereBanUntil, apperr.CodePermanentSphereBan:
		s.metrics.BanDenialsTotal.WithLabelValues("sphere").Inc()
	}
}

// CreatePost publishes a post in the sphere. The author's snapshot is
// checked for global and sphere bans before the insert.
func (s *Service) CreatePost(ctx context.Context, author *authz.User, sphereName, title, body string) (*Post, error) {
	if title == "" {
		return nil, fmt.Errorf("post title must not be empty")
	}

	if err := author.CheckCanPublishOnSphere(sphereName, time.Now().UTC()); err != nil {
		s.banDenied(err)
		return nil, err
	}

	sphere, err := s.spheres.GetSphere(ctx, sphereName)
	if err != nil {
		return nil, err
	}

	post, err := s.store.CreatePost(ctx, sphere.SphereID, sphereName, author.UserID, author.Username, title, body)
	if err != nil {
		return nil, err
	}

	s.logger.WithSphere(sphereName).WithFields(map[string]interface{}{
		"post_id":   post.PostID,
		"author_id": author.UserID,
	}).Info("post created")
	return post, nil
}

// CreateComment publishes a comment. The post's sphere determines which
// sphere ban applies.
func (s *Service) CreateComment(ctx context.Context, author *authz.User, postID int64, body string) (*Comment, error) {
	if body == "" {
		return nil, fmt.Errorf("comment body must not be empty")
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve comment target: %w", err)
	}

	if err := author.CheckCanPublishOnSphere(post.SphereName, time.Now().UTC()); err != nil {
		s.banDenied(err)
		return nil, err
	}

	comment, err := s.store.CreateComment(ctx, postID, post.SphereName, author.UserID, author.Username, body)
	if err != nil {
		return nil, err
	}

	s.logger.WithSphere(post.SphereName).WithFields(map[string]interface{}{
		"comment_id": comment.CommentID,
		"post_id":    postID,
		"author_id":  author.UserID,
	}).Info("comment created")
	return comment, nil
}

// GetPost returns the post by id.
func (s *Service) GetPost(ctx context.Context, postID int64) (*Post, error) {
	return s.store.GetPost(ctx, postID)
}

// GetComment returns the comment by id.
func (s *Service) GetComment(ctx context.Context, commentID int64) (*Comment, error) {
	return s.store.GetComment(ctx, commentID)
}

// GetSpherePostVec returns the sphere's posts.
func (s *Service) GetSpherePostVec(ctx context.Context, sphereName string) ([]Post, error) {
	return s.store.GetSpherePostVec(ctx, sphereName)
}

// GetPostCommentVec returns the post's comments.
func (s *Service) GetPostCommentVec(ctx context.Context, postID int64) ([]Comment, error) {
	return s.store.GetPostCommentVec(ctx, postID)
}
