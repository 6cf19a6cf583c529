package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"account-graph/internal/domain"
	"account-graph/internal/repository"
)

type accountDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	Following    []string  `bson:"following"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// AccountRepository keeps each account, following list included, in one document.
// Follow and unfollow are single-document updates guarded by their filter.
type AccountRepository struct {
	accounts *mongo.Collection
}

func NewAccountRepository(client *mongo.Client, database, collection string) repository.AccountRepository {
	return &AccountRepository{accounts: client.Database(database).Collection(collection)}
}

func (r *AccountRepository) Init(ctx context.Context) error {
	_, err := r.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "following", Value: 1}},
			Options: options.Index().SetName("following"),
		},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (string, error) {
	now := time.Now().UTC()
	account.ID = domain.NewID()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Following = []string{}

	_, err := r.accounts.InsertOne(ctx, accountDocument{
		ID:           account.ID,
		Email:        account.Email,
		Name:         account.Name,
		PasswordHash: account.PasswordHash,
		Following:    account.Following,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("insert account: %w", repository.ErrConflict)
		}
		return "", fmt.Errorf("insert account: %w", err)
	}
	return account.ID, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string, proj domain.Projection) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}}, proj)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}}, domain.ProjectDefault)
}

func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string, proj domain.Projection) ([]domain.Account, error) {
	if len(ids) == 0 {
		return []domain.Account{}, nil
	}
	return r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, proj)
}

func (r *AccountRepository) List(ctx context.Context, proj domain.Projection) ([]domain.Account, error) {
	return r.find(ctx, bson.D{}, proj)
}

func (r *AccountRepository) Update(ctx context.Context, id string, update repository.AccountUpdate) error {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}
	if update.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *update.Name})
	}
	if update.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *update.PasswordHash})
	}

	res, err := r.accounts.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update account: %w", repository.ErrConflict)
		}
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.accounts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) AddFollowing(ctx context.Context, accountID, targetID string) error {
	filter := bson.D{
		{Key: "_id", Value: accountID},
		{Key: "following", Value: bson.D{{Key: "$ne", Value: targetID}}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "following", Value: targetID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	res, err := r.accounts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("push following: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missingOr(ctx, accountID, repository.ErrAlreadyMember)
	}
	return nil
}

// RemoveFollowing relies on AddFollowing never storing a target twice: $pull
// drops every equal element.
func (r *AccountRepository) RemoveFollowing(ctx context.Context, accountID, targetID string) error {
	filter := bson.D{
		{Key: "_id", Value: accountID},
		{Key: "following", Value: targetID},
	}
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "following", Value: targetID}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	res, err := r.accounts.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("pull following: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missingOr(ctx, accountID, repository.ErrNotMember)
	}
	return nil
}

func (r *AccountRepository) ListFollowers(ctx context.Context, targetID string, proj domain.Projection) ([]domain.Account, error) {
	return r.find(ctx, bson.D{{Key: "following", Value: targetID}}, proj)
}

// missingOr tells an absent account apart from a guard that did not match.
func (r *AccountRepository) missingOr(ctx context.Context, id string, guardErr error) error {
	n, err := r.accounts.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count account: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return guardErr
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.D, proj domain.Projection) (*domain.Account, error) {
	opts := options.FindOne()
	if p := projection(proj); len(p) > 0 {
		opts.SetProjection(p)
	}

	var doc accountDocument
	if err := r.accounts.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account := toDomain(doc, proj)
	return &account, nil
}

func (r *AccountRepository) find(ctx context.Context, filter bson.D, proj domain.Projection) ([]domain.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if p := projection(proj); len(p) > 0 {
		opts.SetProjection(p)
	}

	cursor, err := r.accounts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, toDomain(doc, proj))
	}
	return accounts, nil
}

// projection excludes the hidden fields proj does not ask for.
func projection(proj domain.Projection) bson.D {
	var p bson.D
	if !proj.Has(domain.ProjectPasswordHash) {
		p = append(p, bson.E{Key: "password_hash", Value: 0})
	}
	if !proj.Has(domain.ProjectFollowing) {
		p = append(p, bson.E{Key: "following", Value: 0})
	}
	return p
}

func toDomain(doc accountDocument, proj domain.Projection) domain.Account {
	account := domain.Account{
		ID:        doc.ID,
		Email:     doc.Email,
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if proj.Has(domain.ProjectPasswordHash) {
		account.PasswordHash = doc.PasswordHash
	}
	if proj.Has(domain.ProjectFollowing) {
		account.Following = doc.Following
		if account.Following == nil {
			account.Following = []string{}
		}
	}
	return account
}
