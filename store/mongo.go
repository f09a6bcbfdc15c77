package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/c360/bookshelf/errors"
)

// Collection names
const (
	booksCollection   = "books"
	authorsCollection = "authors"
	usersCollection   = "users"
)

// Mongo bundles the MongoDB-backed stores for one database
type Mongo struct {
	books   *mongo.Collection
	authors *mongo.Collection
	users   *mongo.Collection
}

// NewMongo creates MongoDB-backed stores on the given database
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		books:   db.Collection(booksCollection),
		authors: db.Collection(authorsCollection),
		users:   db.Collection(usersCollection),
	}
}

// Books returns the book store
func (m *Mongo) Books() BookStore { return &mongoBooks{coll: m.books} }

// Authors returns the author store
func (m *Mongo) Authors() AuthorStore { return &mongoAuthors{coll: m.authors} }

// Users returns the user store
func (m *Mongo) Users() UserStore { return &mongoUsers{coll: m.users} }

// EnsureIndexes creates the unique indexes the domain relies on:
// author name and username are natural keys.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := m.authors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.WrapTransient(err, "Mongo", "EnsureIndexes", "authors name index")
	}

	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.WrapTransient(err, "Mongo", "EnsureIndexes", "users username index")
	}

	return nil
}

type mongoBooks struct {
	coll *mongo.Collection
}

func (s *mongoBooks) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.WrapTransient(err, "BookStore", "Count", "count documents")
	}
	return n, nil
}

func (s *mongoBooks) All(ctx context.Context, filter BookFilter) ([]Book, error) {
	query := bson.D{}
	if filter.AuthorID != nil {
		query = append(query, bson.E{Key: "author", Value: *filter.AuthorID})
	}
	if filter.Genre != nil {
		query = append(query, bson.E{Key: "genres", Value: *filter.Genre})
	}

	cursor, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, errors.WrapTransient(err, "BookStore", "All", "find books")
	}

	var books []Book
	if err := cursor.All(ctx, &books); err != nil {
		return nil, errors.WrapTransient(err, "BookStore", "All", "decode books")
	}
	if books == nil {
		books = []Book{}
	}
	return books, nil
}

func (s *mongoBooks) Genres(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "genres", bson.D{})
	if err != nil {
		return nil, errors.WrapTransient(err, "BookStore", "Genres", "distinct genres")
	}

	genres := make([]string, 0, len(values))
	for _, v := range values {
		if g, ok := v.(string); ok {
			genres = append(genres, g)
		}
	}
	return genres, nil
}

func (s *mongoBooks) CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "author", Value: authorID}})
	if err != nil {
		return 0, errors.WrapTransient(err, "BookStore", "CountByAuthor", "count documents")
	}
	return n, nil
}

func (s *mongoBooks) Insert(ctx context.Context, book Book) (Book, error) {
	book.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, book); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Book{}, errors.WrapInvalid(errors.ErrDuplicateKey, "BookStore", "Insert", "insert book")
		}
		return Book{}, errors.WrapTransient(err, "BookStore", "Insert", "insert book")
	}
	return book, nil
}

type mongoAuthors struct {
	coll *mongo.Collection
}

func (s *mongoAuthors) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.WrapTransient(err, "AuthorStore", "Count", "count documents")
	}
	return n, nil
}

func (s *mongoAuthors) All(ctx context.Context) ([]Author, error) {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.WrapTransient(err, "AuthorStore", "All", "find authors")
	}

	var authors []Author
	if err := cursor.All(ctx, &authors); err != nil {
		return nil, errors.WrapTransient(err, "AuthorStore", "All", "decode authors")
	}
	if authors == nil {
		authors = []Author{}
	}
	return authors, nil
}

func (s *mongoAuthors) FindByID(ctx context.Context, id primitive.ObjectID) (Author, error) {
	var author Author
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&author)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Author{}, errors.ErrNotFound
		}
		return Author{}, errors.WrapTransient(err, "AuthorStore", "FindByID", "find author")
	}
	return author, nil
}

func (s *mongoAuthors) FindByName(ctx context.Context, name string) (Author, error) {
	var author Author
	err := s.coll.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&author)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Author{}, errors.ErrNotFound
		}
		return Author{}, errors.WrapTransient(err, "AuthorStore", "FindByName", "find author")
	}
	return author, nil
}

// FindOrCreate resolves an author by name with an atomic upsert, so two
// concurrent calls for the same unseen name yield one author record.
func (s *mongoAuthors) FindOrCreate(ctx context.Context, name string) (Author, error) {
	candidate, err := NewAuthor(name)
	if err != nil {
		return Author{}, err
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var author Author
	err = s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "name", Value: candidate.Name}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "name", Value: candidate.Name}}}},
		opts,
	).Decode(&author)
	if err != nil {
		return Author{}, errors.WrapTransient(err, "AuthorStore", "FindOrCreate", "upsert author")
	}
	return author, nil
}

func (s *mongoAuthors) SetBorn(ctx context.Context, name string, born int32) (Author, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var author Author
	err := s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "name", Value: name}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "born", Value: born}}}},
		opts,
	).Decode(&author)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Author{}, errors.ErrNotFound
		}
		return Author{}, errors.WrapTransient(err, "AuthorStore", "SetBorn", "update author")
	}
	return author, nil
}

type mongoUsers struct {
	coll *mongo.Collection
}

func (s *mongoUsers) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.WrapTransient(err, "UserStore", "Count", "count documents")
	}
	return n, nil
}

func (s *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, errors.ErrNotFound
		}
		return User{}, errors.WrapTransient(err, "UserStore", "FindByID", "find user")
	}
	return user, nil
}

func (s *mongoUsers) FindByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.coll.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, errors.ErrNotFound
		}
		return User{}, errors.WrapTransient(err, "UserStore", "FindByUsername", "find user")
	}
	return user, nil
}

func (s *mongoUsers) Insert(ctx context.Context, user User) (User, error) {
	user.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, errors.WrapInvalid(errors.ErrDuplicateKey, "UserStore", "Insert", "insert user")
		}
		return User{}, errors.WrapTransient(err, "UserStore", "Insert", "insert user")
	}
	return user, nil
}
