package store

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/errors"
)

// Author is a catalog author. Born is optional; a nil pointer means the
// birth year was never set.
type Author struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name string             `bson:"name" json:"name"`
	Born *int32             `bson:"born,omitempty" json:"born,omitempty"`
}

// Book is a catalog book referencing exactly one author by id.
type Book struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Published *int32             `bson:"published,omitempty" json:"published,omitempty"`
	AuthorID  primitive.ObjectID `bson:"author" json:"author"`
	Genres    []string           `bson:"genres" json:"genres"`
}

// User is an account that can authenticate against the API.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username      string             `bson:"username" json:"username"`
	FavoriteGenre string             `bson:"favoriteGenre,omitempty" json:"favoriteGenre,omitempty"`
}

// NewAuthor builds an Author from client input, accepting only the fields
// an author may be created with.
func NewAuthor(name string) (Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Author{}, errors.WrapInvalid(errors.ErrInvalidData, "Author", "NewAuthor",
			"name is required")
	}
	return Author{Name: name}, nil
}

// NewBook builds a Book from client input. Only whitelisted fields make it
// into the persisted entity; anything else from the request is dropped.
func NewBook(title string, authorID primitive.ObjectID, published *int32, genres []string) (Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Book{}, errors.WrapInvalid(errors.ErrInvalidData, "Book", "NewBook",
			"title is required")
	}
	if authorID.IsZero() {
		return Book{}, errors.WrapInvalid(errors.ErrInvalidData, "Book", "NewBook",
			"author reference is required")
	}
	if genres == nil {
		genres = []string{}
	}
	return Book{
		Title:     title,
		Published: published,
		AuthorID:  authorID,
		Genres:    genres,
	}, nil
}

// NewUser builds a User from client input.
func NewUser(username, favoriteGenre string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, errors.WrapInvalid(errors.ErrInvalidData, "User", "NewUser",
			"username is required")
	}
	return User{
		Username:      username,
		FavoriteGenre: strings.TrimSpace(favoriteGenre),
	}, nil
}
