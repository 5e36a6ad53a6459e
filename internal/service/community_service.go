package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/pawmart/internal/domain"
)

const (
	defaultPageSize       = 20
	maxPageSize           = 100
	notificationListLimit = 50
)

type CommunityService struct {
	repo CommunityRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewCommunityService(repo CommunityRepository, log *slog.Logger) *CommunityService {
	return &CommunityService{repo: repo, log: log, now: time.Now}
}

func (s *CommunityService) CreatePost(ctx context.Context, title, body, imageURL string) (*domain.Post, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	post := &domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  id.UserID,
		Title:     strings.TrimSpace(title),
		Body:      strings.TrimSpace(body),
		ImageURL:  imageURL,
		CreatedAt: s.now().UTC(),
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns a page of posts, newest first. Out-of-range paging falls back to defaults.
func (s *CommunityService) ListPosts(ctx context.Context, page, limit int) ([]*domain.Post, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.ListPosts(ctx, page, limit)
}

func (s *CommunityService) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	return s.repo.GetPost(ctx, postID)
}

// DeletePost is allowed for the author and for admins.
func (s *CommunityService) DeletePost(ctx context.Context, postID string) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != id.UserID && !id.IsAdmin() {
		return domain.ErrForbidden
	}
	return s.repo.DeletePost(ctx, postID)
}

// AddComment adds a top-level comment, or a reply when parentID is set. The parent must be a
// comment on the same post. The post author, or the parent comment author for replies, is notified.
func (s *CommunityService) AddComment(ctx context.Context, postID string, parentID *string, body string) (*domain.Comment, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  id.UserID,
		Body:      strings.TrimSpace(body),
		CreatedAt: s.now().UTC(),
	}
	if err := comment.Validate(); err != nil {
		return nil, err
	}

	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	recipient := post.AuthorID
	kind := domain.NotificationComment
	if parentID != nil && *parentID != "" {
		parent, err := s.repo.GetComment(ctx, *parentID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("parent_id")
		}
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, domain.NewValidationError("parent_id")
		}
		comment.ParentID = &parent.ID
		recipient = parent.AuthorID
		kind = domain.NotificationReply
	}

	if err := s.repo.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	s.notify(ctx, &domain.Notification{
		UserID:    recipient,
		Type:      kind,
		ActorID:   id.UserID,
		PostID:    postID,
		CommentID: comment.ID,
		Message:   notificationMessage(kind, post.Title),
	})
	return comment, nil
}

// GetCommentTree returns the post's comments as a forest: top-level newest first, replies
// oldest first.
func (s *CommunityService) GetCommentTree(ctx context.Context, postID string) ([]*domain.CommentNode, error) {
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return domain.BuildCommentTree(comments), nil
}

// ToggleUpvote reports whether the caller upvotes the post afterwards.
func (s *CommunityService) ToggleUpvote(ctx context.Context, postID string) (bool, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return false, err
	}
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}

	upvoted, err := s.repo.ToggleUpvote(ctx, domain.Upvote{PostID: postID, UserID: id.UserID, CreatedAt: s.now().UTC()})
	if err != nil {
		return false, err
	}
	if upvoted {
		s.notify(ctx, &domain.Notification{
			UserID:  post.AuthorID,
			Type:    domain.NotificationUpvote,
			ActorID: id.UserID,
			PostID:  postID,
			Message: notificationMessage(domain.NotificationUpvote, post.Title),
		})
	}
	return upvoted, nil
}

func (s *CommunityService) ListNotifications(ctx context.Context) ([]*domain.Notification, error) {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListNotifications(ctx, id.UserID, notificationListLimit)
}

func (s *CommunityService) MarkNotificationRead(ctx context.Context, notificationID string) error {
	id, err := domain.IdentityFrom(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkNotificationRead(ctx, notificationID, id.UserID)
}

// notify stores n unless it would tell users about their own action. Failures are logged only.
func (s *CommunityService) notify(ctx context.Context, n *domain.Notification) {
	if n.UserID == "" || n.UserID == n.ActorID {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.now().UTC()
	if _, err := s.repo.InsertNotification(ctx, n); err != nil {
		s.log.WarnContext(ctx, "failed to store notification",
			slog.String("user_id", n.UserID), slog.String("type", string(n.Type)), slog.Any("error", err))
	}
}

func notificationMessage(kind domain.NotificationType, postTitle string) string {
	switch kind {
	case domain.NotificationReply:
		return fmt.Sprintf("Someone replied to your comment on %q", postTitle)
	case domain.NotificationUpvote:
		return fmt.Sprintf("Someone upvoted %q", postTitle)
	default:
		return fmt.Sprintf("New comment on %q", postTitle)
	}
}
