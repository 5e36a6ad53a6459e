package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fjod/pawmart/internal/domain"
)

// CommunityRepository stores posts, comments, upvotes and notifications in MongoDB.
type CommunityRepository struct {
	db            *mongo.Database
	posts         *mongo.Collection
	comments      *mongo.Collection
	upvotes       *mongo.Collection
	notifications *mongo.Collection
}

func NewCommunityRepository(db *mongo.Database) *CommunityRepository {
	return &CommunityRepository{
		db:            db,
		posts:         db.Collection("posts"),
		comments:      db.Collection("comments"),
		upvotes:       db.Collection("upvotes"),
		notifications: db.Collection("notifications"),
	}
}

func (m *CommunityRepository) CreateIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.posts: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		m.comments: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		m.upvotes: {
			{
				Keys:    bson.D{{Key: "post_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		m.notifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "event_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (m *CommunityRepository) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, readpref.Primary())
}

func (m *CommunityRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	if _, err := m.posts.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// ListPosts returns one page of posts, newest first. Pages start at 1.
func (m *CommunityRepository) ListPosts(ctx context.Context, page, limit int) ([]*domain.Post, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := m.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}
	posts := make([]*domain.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

func (m *CommunityRepository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := m.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// DeletePost removes the post together with its comments and upvotes.
func (m *CommunityRepository) DeletePost(ctx context.Context, id string) error {
	result, err := m.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}

	if _, err := m.comments.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return fmt.Errorf("failed to delete comments of post: %w", err)
	}
	if _, err := m.upvotes.DeleteMany(ctx, bson.M{"post_id": id}); err != nil {
		return fmt.Errorf("failed to delete upvotes of post: %w", err)
	}
	return nil
}

func (m *CommunityRepository) InsertComment(ctx context.Context, comment *domain.Comment) error {
	if _, err := m.comments.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	_, err := m.posts.UpdateOne(ctx,
		bson.M{"_id": comment.PostID},
		bson.M{"$inc": bson.M{"comment_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to update comment count: %w", err)
	}
	return nil
}

func (m *CommunityRepository) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := m.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &comment, nil
}

func (m *CommunityRepository) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	cursor, err := m.comments.Find(ctx, bson.M{"post_id": postID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find comments: %w", err)
	}
	comments := make([]domain.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}
	return comments, nil
}

// ToggleUpvote adds the user's upvote, or removes it when one already exists.
// It reports whether the post is upvoted by the user afterwards.
func (m *CommunityRepository) ToggleUpvote(ctx context.Context, upvote domain.Upvote) (bool, error) {
	filter := bson.M{"post_id": upvote.PostID, "user_id": upvote.UserID}

	_, err := m.upvotes.InsertOne(ctx, upvote)
	switch {
	case err == nil:
		if err := m.incUpvotes(ctx, upvote.PostID, 1); err != nil {
			return false, err
		}
		return true, nil
	case mongo.IsDuplicateKeyError(err):
		result, err := m.upvotes.DeleteOne(ctx, filter)
		if err != nil {
			return false, fmt.Errorf("failed to remove upvote: %w", err)
		}
		if result.DeletedCount > 0 {
			if err := m.incUpvotes(ctx, upvote.PostID, -1); err != nil {
				return false, err
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("failed to insert upvote: %w", err)
	}
}

func (m *CommunityRepository) incUpvotes(ctx context.Context, postID string, delta int) error {
	_, err := m.posts.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$inc": bson.M{"upvotes": delta}})
	if err != nil {
		return fmt.Errorf("failed to update upvote count: %w", err)
	}
	return nil
}

// InsertNotification stores n. A notification whose event id was already stored is skipped
// and reported with inserted false.
func (m *CommunityRepository) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	if _, err := m.notifications.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) && n.EventID != "" {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return true, nil
}

func (m *CommunityRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.notifications.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find notifications: %w", err)
	}
	notifications := make([]*domain.Notification, 0)
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead only matches notifications owned by userID.
func (m *CommunityRepository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := m.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
