package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
)

// usersCollection is the subset of *mongo.Collection used by the directory.
type usersCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type chatUserDocument struct {
	Name      string    `bson:"name"`
	AccountID string    `bson:"accountId"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"createdAt"`
}

// ChatUserDirectory implements port.ChatUserDirectory on a MongoDB collection.
type ChatUserDirectory struct {
	users usersCollection
}

// NewChatUserDirectory wraps the chat users collection.
func NewChatUserDirectory(users usersCollection) *ChatUserDirectory {
	return &ChatUserDirectory{users: users}
}

// InsertIfMissing upserts on accountId with $setOnInsert so existing documents are left untouched.
func (d *ChatUserDirectory) InsertIfMissing(ctx context.Context, user domain.ChatUser) (bool, error) {
	doc := chatUserDocument{
		Name:      user.Name,
		AccountID: user.AccountID,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC(),
	}

	result, err := d.users.UpdateOne(ctx,
		bson.D{{Key: "accountId", Value: user.AccountID}},
		bson.D{{Key: "$setOnInsert", Value: doc}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert chat user: %w", err)
	}

	return result.UpsertedCount > 0, nil
}

// NoopChatUserDirectory is used when MongoDB is disabled. It never inserts.
type NoopChatUserDirectory struct{}

func (NoopChatUserDirectory) InsertIfMissing(context.Context, domain.ChatUser) (bool, error) {
	return false, nil
}

var (
	_ port.ChatUserDirectory = (*ChatUserDirectory)(nil)
	_ port.ChatUserDirectory = NoopChatUserDirectory{}
)
