package graphql

import (
	"context"

	gql "github.com/graph-gophers/graphql-go"

	"github.com/c360/bookshelf/errors"
	"github.com/c360/bookshelf/store"
)

// BookResolver resolves the Book type
type BookResolver struct {
	book    store.Book
	authors store.AuthorStore
}

// ID returns the book id
func (r *BookResolver) ID() gql.ID {
	return gql.ID(r.book.ID.Hex())
}

// Title returns the book title
func (r *BookResolver) Title() string {
	return r.book.Title
}

// Published returns the publication year, if known
func (r *BookResolver) Published() *int32 {
	return r.book.Published
}

// Genres returns the book's genre list
func (r *BookResolver) Genres() []string {
	return r.book.Genres
}

// Author resolves the book's author reference. The result is a narrow
// projection (name, born, id); booksCount is not computed through this
// path. A reference to a missing author surfaces as a dangling-reference
// error instead of crashing the query.
func (r *BookResolver) Author(ctx context.Context) (*AuthorResolver, error) {
	author, err := r.authors.FindByID(ctx, r.book.AuthorID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errDanglingReference(r.book.AuthorID.Hex())
		}
		return nil, errInternal("Book.author")
	}
	return &AuthorResolver{author: author}, nil
}

// AuthorResolver resolves the Author type. When books is nil the resolver
// is a projection and booksCount resolves to null.
type AuthorResolver struct {
	author store.Author
	books  store.BookStore
}

// ID returns the author id
func (r *AuthorResolver) ID() gql.ID {
	return gql.ID(r.author.ID.Hex())
}

// Name returns the author name
func (r *AuthorResolver) Name() string {
	return r.author.Name
}

// Born returns the author's birth year, if set
func (r *AuthorResolver) Born() *int32 {
	return r.author.Born
}

// BooksCount returns the number of books referencing this author,
// computed per query.
func (r *AuthorResolver) BooksCount(ctx context.Context) (*int32, error) {
	if r.books == nil {
		return nil, nil
	}
	n, err := r.books.CountByAuthor(ctx, r.author.ID)
	if err != nil {
		return nil, errInternal("Author.booksCount")
	}
	count := int32(n)
	return &count, nil
}

// UserResolver resolves the User type
type UserResolver struct {
	user store.User
}

// ID returns the user id
func (r *UserResolver) ID() gql.ID {
	return gql.ID(r.user.ID.Hex())
}

// Username returns the username
func (r *UserResolver) Username() string {
	return r.user.Username
}

// FavoriteGenre returns the user's favorite genre, if set
func (r *UserResolver) FavoriteGenre() *string {
	if r.user.FavoriteGenre == "" {
		return nil
	}
	genre := r.user.FavoriteGenre
	return &genre
}

// TokenResolver resolves the Token type returned by login
type TokenResolver struct {
	value string
	user  store.User
}

// Value returns the signed token string
func (r *TokenResolver) Value() string {
	return r.value
}

// User returns the logged-in user
func (r *TokenResolver) User() *UserResolver {
	return &UserResolver{user: r.user}
}
