package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/learnhub/account-service/internal/core/domain"
)

const (
	usersCollection  = "users"
	resetsCollection = "password_resets"
)

// IdentityStore implements ports.IdentityStore using MongoDB. Consuming a
// reset request requires a replica set because it runs in a transaction.
type IdentityStore struct {
	client *mongo.Client
	users  *mongo.Collection
	resets *mongo.Collection
}

func NewIdentityStore(client *mongo.Client, db *mongo.Database) *IdentityStore {
	return &IdentityStore{
		client: client,
		users:  db.Collection(usersCollection),
		resets: db.Collection(resetsCollection),
	}
}

type mongoUser struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	Role         string `bson:"role"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

type mongoReset struct {
	ID         string `bson:"_id"`
	UserID     string `bson:"user_id"`
	CreatedAt  int64  `bson:"created_at"`
	ExpiresAt  int64  `bson:"expires_at"`
	Consumed   bool   `bson:"consumed"`
	ConsumedAt int64  `bson:"consumed_at,omitempty"`
}

func (r *IdentityStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

func (r *IdentityStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *IdentityStore) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.users.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *IdentityStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	created := *user
	created.ID = uuid.NewString()
	created.Email = strings.ToLower(user.Email)
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, toMongoUser(&created)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &created, nil
}

func (r *IdentityStore) SaveUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	saved := *user
	saved.Email = strings.ToLower(user.Email)
	saved.UpdatedAt = time.Now().UTC()

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": saved.ID}, bson.M{"$set": bson.M{
		"name":          saved.Name,
		"email":         saved.Email,
		"password_hash": saved.PasswordHash,
		"role":          string(saved.Role),
		"updated_at":    saved.UpdatedAt.UnixNano(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &saved, nil
}

func (r *IdentityStore) CreateResetRequest(ctx context.Context, req *domain.ChangePasswordRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoReset{
		ID:        req.ID,
		UserID:    req.UserID,
		CreatedAt: req.CreatedAt.UnixNano(),
		ExpiresAt: req.ExpiresAt.UnixNano(),
	}
	if _, err := r.resets.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert reset request: %w", err)
	}
	return nil
}

func (r *IdentityStore) FindResetRequest(ctx context.Context, id string) (*domain.ChangePasswordRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoReset
	if err := r.resets.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResetNotFound
		}
		return nil, fmt.Errorf("find reset request: %w", err)
	}
	return doc.toDomain(), nil
}

// CompareAndConsume runs the guarded flag flip and the password write in one
// transaction. The filter on consumed/expires_at is what serialises racing
// consumers: only one FindOneAndUpdate can match.
func (r *IdentityStore) CompareAndConsume(ctx context.Context, id, passwordHash string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sess, err := r.client.StartSession()
	if err != nil {
		return false, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"_id":        id,
			"consumed":   false,
			"expires_at": bson.M{"$gt": now.UnixNano()},
		}
		update := bson.M{"$set": bson.M{"consumed": true, "consumed_at": now.UnixNano()}}

		var doc mongoReset
		err := r.resets.FindOneAndUpdate(sc, filter, update).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, cerr := r.resets.CountDocuments(sc, bson.M{"_id": id})
			if cerr != nil {
				return nil, cerr
			}
			if n == 0 {
				return nil, domain.ErrResetNotFound
			}
			return false, nil
		}
		if err != nil {
			return nil, err
		}

		res, err := r.users.UpdateOne(sc, bson.M{"_id": doc.UserID}, bson.M{"$set": bson.M{
			"password_hash": passwordHash,
			"updated_at":    now.UnixNano(),
		}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount != 1 {
			return nil, domain.ErrUserNotFound
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrResetNotFound) || errors.Is(err, domain.ErrUserNotFound) {
			return false, err
		}
		return false, fmt.Errorf("consume reset: %w", err)
	}
	ok, _ := result.(bool)
	return ok, nil
}

// EnsureIndexes creates the unique email index and the reset owner index.
func (r *IdentityStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := r.resets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("password_resets index: %w", err)
	}
	return nil
}

// Ping satisfies the readiness probe.
func (r *IdentityStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (mu mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           mu.ID,
		Name:         mu.Name,
		Email:        mu.Email,
		PasswordHash: mu.PasswordHash,
		Role:         domain.Role(mu.Role),
		CreatedAt:    nanosToTime(mu.CreatedAt),
		UpdatedAt:    nanosToTime(mu.UpdatedAt),
	}
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt.UnixNano(),
		UpdatedAt:    u.UpdatedAt.UnixNano(),
	}
}

func (d mongoReset) toDomain() *domain.ChangePasswordRequest {
	req := &domain.ChangePasswordRequest{
		ID:        d.ID,
		UserID:    d.UserID,
		CreatedAt: nanosToTime(d.CreatedAt),
		ExpiresAt: nanosToTime(d.ExpiresAt),
		Consumed:  d.Consumed,
	}
	if d.ConsumedAt != 0 {
		at := nanosToTime(d.ConsumedAt)
		req.ConsumedAt = &at
	}
	return req
}

func nanosToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
