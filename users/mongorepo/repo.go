// Package mongorepo provides the MongoDB-backed implementation of users.UserRepo.
//
// Refresh-token records live in an embedded array on the user document, so
// every rotation-critical mutation is a single-document conditional update.
package mongorepo

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/users"
)

var _ users.UserRepo = (*UserRepo)(nil)

type UserRepo struct {
	collection *mongo.Collection
}

// NewUserRepo binds the repository to the "users" collection and ensures the
// unique email index exists.
func NewUserRepo(ctx context.Context, db *mongo.Database) (*UserRepo, error) {
	collection := db.Collection("users")

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, errors.Wrap(err, "[NewUserRepo] failed to create email index")
	}

	return &UserRepo{collection: collection}, nil
}

func (r *UserRepo) Create(ctx context.Context, user *users.User) error {
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrEmailTaken
		}
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.Create] %v", err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.findOne(ctx, bson.M{"email": users.NormalizeEmail(email)})
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*users.User, error) {
	var user users.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "[UserRepo.findOne]")
	}
	return &user, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.Delete] %v", err)
	}
	if result.DeletedCount == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) TouchActivity(ctx context.Context, id string) error {
	result, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$currentDate": bson.M{"updatedAt": true},
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.TouchActivity] %v", err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) AppendRefreshToken(ctx context.Context, userID string, record users.RefreshTokenRecord) error {
	result, err := r.collection.UpdateByID(ctx, userID, bson.M{
		"$push": bson.M{"refreshTokens": record},
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.AppendRefreshToken] %v", err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// ConsumeRefreshToken flips isUsed on the matching unused, unexpired record.
// The predicate and the write are one conditional update, so of any number
// of concurrent consumes of the same tokenId exactly one observes true.
func (r *UserRepo) ConsumeRefreshToken(ctx context.Context, userID, tokenID string, now time.Time) (bool, error) {
	filter := bson.M{
		"_id": userID,
		"refreshTokens": bson.M{"$elemMatch": bson.M{
			"tokenId":   tokenID,
			"isUsed":    false,
			"expiresAt": bson.M{"$gt": now},
		}},
	}
	update := bson.M{"$set": bson.M{"refreshTokens.$.isUsed": true}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.ConsumeRefreshToken] %v", err)
	}
	return result.ModifiedCount == 1, nil
}

// RevokeRefreshTokens marks every record for the user as used, making the
// whole token family inert without erasing it; the inert records stay
// inspectable until the cleanup sweep reaps them.
func (r *UserRepo) RevokeRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.collection.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"refreshTokens.$[].isUsed": true},
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.RevokeRefreshTokens] %v", err)
	}
	return nil
}

func (r *UserRepo) ClearRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.collection.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"refreshTokens": []users.RefreshTokenRecord{}},
	})
	if err != nil {
		return errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.ClearRefreshTokens] %v", err)
	}
	return nil
}

func (r *UserRepo) ReapUsedTokens(ctx context.Context, olderThan time.Time) (int64, error) {
	cond := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$$t.isUsed", true}},
		bson.M{"$lt": bson.A{"$$t.createdAt", olderThan}},
	}}
	removed, err := r.countRecords(ctx, bson.M{}, cond)
	if err != nil {
		return 0, errors.Wrap(err, "[UserRepo.ReapUsedTokens] count")
	}

	_, err = r.collection.UpdateMany(ctx, bson.M{}, bson.M{
		"$pull": bson.M{"refreshTokens": bson.M{
			"isUsed":    true,
			"createdAt": bson.M{"$lt": olderThan},
		}},
	})
	if err != nil {
		return 0, errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.ReapUsedTokens] %v", err)
	}
	return removed, nil
}

func (r *UserRepo) ReapExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	cond := bson.M{"$lte": bson.A{"$$t.expiresAt", now}}
	removed, err := r.countRecords(ctx, bson.M{}, cond)
	if err != nil {
		return 0, errors.Wrap(err, "[UserRepo.ReapExpiredTokens] count")
	}

	_, err = r.collection.UpdateMany(ctx, bson.M{}, bson.M{
		"$pull": bson.M{"refreshTokens": bson.M{
			"expiresAt": bson.M{"$lte": now},
		}},
	})
	if err != nil {
		return 0, errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.ReapExpiredTokens] %v", err)
	}
	return removed, nil
}

// EnforceTokenCap keeps only the maxPerUser most-recently-created records per
// user. Records are appended in creation order, so a negative $slice retains
// the newest ones.
func (r *UserRepo) EnforceTokenCap(ctx context.Context, maxPerUser int) (int64, error) {
	overCap := bson.M{fmt.Sprintf("refreshTokens.%d", maxPerUser): bson.M{"$exists": true}}

	removed, err := r.sumExcess(ctx, overCap, maxPerUser)
	if err != nil {
		return 0, errors.Wrap(err, "[UserRepo.EnforceTokenCap] count")
	}

	_, err = r.collection.UpdateMany(ctx, overCap, bson.M{
		"$push": bson.M{"refreshTokens": bson.M{
			"$each":  bson.A{},
			"$slice": -maxPerUser,
		}},
	})
	if err != nil {
		return 0, errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.EnforceTokenCap] %v", err)
	}
	return removed, nil
}

func (r *UserRepo) PurgeInactive(ctx context.Context, inactiveSince time.Time) (int64, error) {
	inactive := bson.M{
		"updatedAt":       bson.M{"$lt": inactiveSince},
		"refreshTokens.0": bson.M{"$exists": true},
	}

	removed, err := r.countRecords(ctx, inactive, bson.M{"$literal": true})
	if err != nil {
		return 0, errors.Wrap(err, "[UserRepo.PurgeInactive] count")
	}

	_, err = r.collection.UpdateMany(ctx, inactive, bson.M{
		"$set": bson.M{"refreshTokens": []users.RefreshTokenRecord{}},
	})
	if err != nil {
		return 0, errs.Wrapf(errs.ErrStoreWrite, "[UserRepo.PurgeInactive] %v", err)
	}
	return removed, nil
}

func (r *UserRepo) TokenStats(ctx context.Context, now time.Time, maxPerUser int) (*users.TokenStats, error) {
	stats := &users.TokenStats{}

	var err error
	if stats.UsersWithTokens, err = r.collection.CountDocuments(ctx, bson.M{"refreshTokens.0": bson.M{"$exists": true}}); err != nil {
		return nil, errors.Wrap(err, "[UserRepo.TokenStats] users with tokens")
	}
	if stats.UsersOverCap, err = r.collection.CountDocuments(ctx, bson.M{fmt.Sprintf("refreshTokens.%d", maxPerUser): bson.M{"$exists": true}}); err != nil {
		return nil, errors.Wrap(err, "[UserRepo.TokenStats] users over cap")
	}
	if stats.UsedTokens, err = r.countRecords(ctx, bson.M{}, bson.M{"$eq": bson.A{"$$t.isUsed", true}}); err != nil {
		return nil, errors.Wrap(err, "[UserRepo.TokenStats] used tokens")
	}
	if stats.ExpiredTokens, err = r.countRecords(ctx, bson.M{}, bson.M{"$lte": bson.A{"$$t.expiresAt", now}}); err != nil {
		return nil, errors.Wrap(err, "[UserRepo.TokenStats] expired tokens")
	}

	return stats, nil
}

// countRecords sums, across every user matching filter, the number of
// embedded records satisfying the $filter condition cond.
func (r *UserRepo) countRecords(ctx context.Context, filter, cond bson.M) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$project", Value: bson.M{
			"n": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$refreshTokens", bson.A{}}},
				"as":    "t",
				"cond":  cond,
			}}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$n"}}}},
	}
	return r.aggregateTotal(ctx, pipeline)
}

// sumExcess sums max(0, len(refreshTokens)-maxPerUser) over matching users.
func (r *UserRepo) sumExcess(ctx context.Context, filter bson.M, maxPerUser int) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$project", Value: bson.M{
			"n": bson.M{"$max": bson.A{
				0,
				bson.M{"$subtract": bson.A{
					bson.M{"$size": bson.M{"$ifNull": bson.A{"$refreshTokens", bson.A{}}}},
					maxPerUser,
				}},
			}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$n"}}}},
	}
	return r.aggregateTotal(ctx, pipeline)
}

func (r *UserRepo) aggregateTotal(ctx context.Context, pipeline mongo.Pipeline) (int64, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}
