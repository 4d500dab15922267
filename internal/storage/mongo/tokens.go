package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kuex/internal/domain"
)

type VerificationRepo struct {
	codes *mongo.Collection
}

func NewVerificationRepo(db *mongo.Database) *VerificationRepo {
	return &VerificationRepo{codes: db.Collection(colVerifications)}
}

func (r *VerificationRepo) FindByEmail(ctx context.Context, email string) (*domain.EmailVerification, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindRecent returns a code created at or after since, used for resend
// throttling.
func (r *VerificationRepo) FindRecent(ctx context.Context, email string, since time.Time) (*domain.EmailVerification, error) {
	return r.findOne(ctx, bson.M{"email": email, "createdAt": bson.M{"$gte": since}})
}

func (r *VerificationRepo) FindVerified(ctx context.Context, email string) (*domain.EmailVerification, error) {
	return r.findOne(ctx, bson.M{"email": email, "verified": true})
}

func (r *VerificationRepo) findOne(ctx context.Context, filter bson.M) (*domain.EmailVerification, error) {
	var doc verificationDoc
	err := r.codes.FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *VerificationRepo) Replace(ctx context.Context, v *domain.EmailVerification) error {
	if _, err := r.codes.DeleteMany(ctx, bson.M{"email": v.Email}); err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := verificationDoc{
		Email:     v.Email,
		Code:      v.Code,
		ExpiresAt: v.ExpiresAt,
		CreatedAt: now,
	}
	res, err := r.codes.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		v.ID = oid.Hex()
	}
	v.CreatedAt = now
	return nil
}

func (r *VerificationRepo) MarkVerified(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidID
	}
	now := time.Now().UTC()
	res, err := r.codes.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"verified": true, "verifiedAt": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *VerificationRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidID
	}
	_, err = r.codes.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

type ResetTokenRepo struct {
	tokens *mongo.Collection
}

func NewResetTokenRepo(db *mongo.Database) *ResetTokenRepo {
	return &ResetTokenRepo{tokens: db.Collection(colResetTokens)}
}

func (r *ResetTokenRepo) Replace(ctx context.Context, t *domain.PasswordResetToken) error {
	uid, err := primitive.ObjectIDFromHex(t.UserID)
	if err != nil {
		return domain.ErrInvalidID
	}
	if _, err := r.tokens.DeleteMany(ctx, bson.M{"userId": uid}); err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := resetTokenDoc{
		UserID:    uid,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: now,
	}
	res, err := r.tokens.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid.Hex()
	}
	t.CreatedAt = now
	return nil
}

// FindValid returns the token only while it has not expired.
func (r *ResetTokenRepo) FindValid(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	var doc resetTokenDoc
	err := r.tokens.FindOne(ctx, bson.M{
		"token":     token,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ResetTokenRepo) DeleteForUser(ctx context.Context, userID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrInvalidID
	}
	_, err = r.tokens.DeleteMany(ctx, bson.M{"userId": uid})
	return err
}
