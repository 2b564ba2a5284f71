package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names within the configured database.
const (
	accountsCollection = "accounts"
	quotesCollection   = "quotes"
)

// Initial connection retry parameters. Only the startup ping is retried;
// request-scoped operations surface [ErrUnavailable] to the caller instead.
const (
	connectRetryBase = 500 * time.Millisecond
	connectRetryMax  = 5
)

// Mongo is a [Store] backed by a MongoDB database.
type Mongo struct {
	client   *mongo.Client
	accounts *mongo.Collection
	quotes   *mongo.Collection
}

// NewMongo connects to the MongoDB deployment at uri and initializes the
// collections and indexes in the named database. The initial ping is retried
// with fibonacci backoff so the server can come up alongside the database.
func NewMongo(ctx context.Context, logger *slog.Logger, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	backoff := retry.WithMaxRetries(connectRetryMax, retry.NewFibonacci(connectRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			logger.WarnContext(ctx, "MongoDB not reachable yet, retrying...",
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB at startup: %w: %w", ErrUnavailable, err)
	}

	db := client.Database(database)
	store := &Mongo{
		client:   client,
		accounts: db.Collection(accountsCollection),
		quotes:   db.Collection(quotesCollection),
	}
	if err = store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureIndexes creates the indexes the store depends on. The unique index on
// email is what makes concurrent registration race-free; it must exist before
// the first CreateAccount.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique email index: %w", err)
	}

	_, err = m.quotes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create quote owner index: %w", err)
	}
	return nil
}

// Ping satisfies the [Store] interface.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Close satisfies the [Store] interface.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// CreateAccount satisfies the [Accounts] interface.
func (m *Mongo) CreateAccount(ctx context.Context, account Account) (Account, error) {
	account.Email = NormalizeEmail(account.Email)
	if !ValidEmail(account.Email) {
		return Account{}, ErrInvalidEmail
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := m.accounts.InsertOne(ctx, account); err != nil {
		return Account{}, mapMongoError(err)
	}
	return account, nil
}

// GetAccount satisfies the [Accounts] interface.
func (m *Mongo) GetAccount(ctx context.Context, id primitive.ObjectID) (Account, error) {
	var account Account
	err := m.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	return account, mapMongoError(err)
}

// GetAccountByEmail satisfies the [Accounts] interface.
func (m *Mongo) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	var account Account
	err := m.accounts.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&account)
	return account, mapMongoError(err)
}

// UpdateAccountSecret satisfies the [Accounts] interface. Only the secret_hash
// field is written; email and created_at are never re-sent, so an unrelated
// update can never clobber or rehash the secret.
func (m *Mongo) UpdateAccountSecret(ctx context.Context, id primitive.ObjectID, secretHash string) error {
	res, err := m.accounts.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"secret_hash": secretHash},
	})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount satisfies the [Accounts] interface.
func (m *Mongo) DeleteAccount(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.accounts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err = m.quotes.DeleteMany(ctx, bson.M{"owner": id}); err != nil {
		return mapMongoError(err)
	}
	return nil
}

// CreateQuote satisfies the [Quotes] interface.
func (m *Mongo) CreateQuote(ctx context.Context, quote Quote) (Quote, error) {
	if quote.ID.IsZero() {
		quote.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now

	if _, err := m.quotes.InsertOne(ctx, quote); err != nil {
		return Quote{}, mapMongoError(err)
	}
	return quote, nil
}

// GetQuote satisfies the [Quotes] interface.
func (m *Mongo) GetQuote(ctx context.Context, id primitive.ObjectID) (Quote, error) {
	var quote Quote
	err := m.quotes.FindOne(ctx, bson.M{"_id": id}).Decode(&quote)
	return quote, mapMongoError(err)
}

// ListQuotes satisfies the [Quotes] interface. ObjectIDs are time-prefixed, so
// sorting on _id descending yields newest first and afterID works as a cursor.
func (m *Mongo) ListQuotes(ctx context.Context, afterID primitive.ObjectID, limit int32) ([]Quote, error) {
	filter := bson.M{}
	if !afterID.IsZero() {
		filter["_id"] = bson.M{"$lt": afterID}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.quotes.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoError(err)
	}
	var quotes []Quote
	if err = cursor.All(ctx, &quotes); err != nil {
		return nil, mapMongoError(err)
	}
	return quotes, nil
}

// UpdateQuote satisfies the [Quotes] interface.
func (m *Mongo) UpdateQuote(ctx context.Context, quote Quote) error {
	res, err := m.quotes.UpdateByID(ctx, quote.ID, bson.M{
		"$set": bson.M{
			"text":       quote.Text,
			"character":  quote.Character,
			"source":     quote.Source,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuote satisfies the [Quotes] interface.
func (m *Mongo) DeleteQuote(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.quotes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mapMongoError translates driver errors into the storage taxonomy. Errors
// with no mapping pass through unchanged.
func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrAlreadyExists
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

var _ Store = (*Mongo)(nil)
