// Package store persists the book catalog in a document database.
// It exposes narrow per-collection interfaces consumed by the resolvers,
// backed either by MongoDB or by an in-memory implementation.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookFilter narrows an All query over books. Nil fields match everything.
type BookFilter struct {
	// AuthorID matches books whose author reference equals this id
	AuthorID *primitive.ObjectID

	// Genre matches books whose genres list contains this exact string
	Genre *string
}

// BookStore persists books
type BookStore interface {
	// Count returns the total number of books
	Count(ctx context.Context) (int64, error)

	// All returns books matching the filter, unordered
	All(ctx context.Context, filter BookFilter) ([]Book, error)

	// Genres returns the distinct genre strings across all books
	Genres(ctx context.Context) ([]string, error)

	// CountByAuthor returns the number of books referencing the author
	CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error)

	// Insert persists a new book and returns it with its generated id
	Insert(ctx context.Context, book Book) (Book, error)
}

// AuthorStore persists authors
type AuthorStore interface {
	// Count returns the total number of authors
	Count(ctx context.Context) (int64, error)

	// All returns all authors, unordered
	All(ctx context.Context) ([]Author, error)

	// FindByID returns the author with the given id, or ErrNotFound
	FindByID(ctx context.Context, id primitive.ObjectID) (Author, error)

	// FindByName returns the author with the given exact name, or ErrNotFound
	FindByName(ctx context.Context, name string) (Author, error)

	// FindOrCreate returns the author with the given name, creating it
	// atomically when no such author exists yet
	FindOrCreate(ctx context.Context, name string) (Author, error)

	// SetBorn updates the birth year of the author with the given name and
	// returns the updated author, or ErrNotFound when no author matches
	SetBorn(ctx context.Context, name string, born int32) (Author, error)
}

// UserStore persists user accounts
type UserStore interface {
	// Count returns the total number of users
	Count(ctx context.Context) (int64, error)

	// FindByID returns the user with the given id, or ErrNotFound
	FindByID(ctx context.Context, id primitive.ObjectID) (User, error)

	// FindByUsername returns the user with the given username, or ErrNotFound
	FindByUsername(ctx context.Context, username string) (User, error)

	// Insert persists a new user and returns it with its generated id
	Insert(ctx context.Context, user User) (User, error)
}
