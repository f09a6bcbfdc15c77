package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/errors"
)

func TestNewAuthorValidation(t *testing.T) {
	_, err := NewAuthor("  ")
	assert.True(t, errors.IsInvalid(err))

	author, err := NewAuthor(" Robert Martin ")
	require.NoError(t, err)
	assert.Equal(t, "Robert Martin", author.Name)
	assert.Nil(t, author.Born)
}

func TestNewBookValidation(t *testing.T) {
	authorID := primitive.NewObjectID()

	tests := []struct {
		name     string
		title    string
		authorID primitive.ObjectID
		wantErr  bool
	}{
		{name: "valid", title: "Clean Code", authorID: authorID},
		{name: "missing title", title: "", authorID: authorID, wantErr: true},
		{name: "blank title", title: "   ", authorID: authorID, wantErr: true},
		{name: "zero author id", title: "Clean Code", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBook(tt.title, tt.authorID, nil, nil)
			if tt.wantErr {
				assert.True(t, errors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewBookNormalizesNilGenres(t *testing.T) {
	book, err := NewBook("Clean Code", primitive.NewObjectID(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, book.Genres)
	assert.Empty(t, book.Genres)
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	authors := NewMemory().Authors()

	first, err := authors.FindOrCreate(ctx, "Robert Martin")
	require.NoError(t, err)
	require.False(t, first.ID.IsZero())

	second, err := authors.FindOrCreate(ctx, "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	n, err := authors.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSetBorn(t *testing.T) {
	ctx := context.Background()
	authors := NewMemory().Authors()

	created, err := authors.FindOrCreate(ctx, "Robert Martin")
	require.NoError(t, err)

	updated, err := authors.SetBorn(ctx, "Robert Martin", 1952)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Robert Martin", updated.Name)
	require.NotNil(t, updated.Born)
	assert.EqualValues(t, 1952, *updated.Born)
}

func TestSetBornMissReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	authors := NewMemory().Authors()

	_, err := authors.SetBorn(ctx, "Nobody", 1900)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	n, err := authors.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookFilters(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	authors := mem.Authors()
	books := mem.Books()

	martin, err := authors.FindOrCreate(ctx, "Robert Martin")
	require.NoError(t, err)
	fowler, err := authors.FindOrCreate(ctx, "Martin Fowler")
	require.NoError(t, err)

	insert := func(title string, authorID primitive.ObjectID, genres ...string) Book {
		book, err := NewBook(title, authorID, nil, genres)
		require.NoError(t, err)
		saved, err := books.Insert(ctx, book)
		require.NoError(t, err)
		return saved
	}

	insert("Clean Code", martin.ID, "refactoring")
	insert("Agile Software Development", martin.ID, "agile", "design")
	insert("Refactoring", fowler.ID, "refactoring", "design")

	genre := "refactoring"
	byGenre, err := books.All(ctx, BookFilter{Genre: &genre})
	require.NoError(t, err)
	assert.Len(t, byGenre, 2)
	for _, b := range byGenre {
		assert.Contains(t, b.Genres, "refactoring")
	}

	byAuthor, err := books.All(ctx, BookFilter{AuthorID: &martin.ID})
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	both, err := books.All(ctx, BookFilter{AuthorID: &martin.ID, Genre: &genre})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Clean Code", both[0].Title)

	all, err := books.All(ctx, BookFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := books.CountByAuthor(ctx, martin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestGenresDistinct(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	authors := mem.Authors()
	books := mem.Books()

	author, err := authors.FindOrCreate(ctx, "Martin Fowler")
	require.NoError(t, err)

	for _, title := range []string{"Refactoring", "Patterns of Enterprise Application Architecture"} {
		book, err := NewBook(title, author.ID, nil, []string{"design", "refactoring"})
		require.NoError(t, err)
		_, err = books.Insert(ctx, book)
		require.NoError(t, err)
	}

	genres, err := books.Genres(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"design", "refactoring"}, genres)
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	users := NewMemory().Users()

	user, err := NewUser("mluukkai", "refactoring")
	require.NoError(t, err)

	saved, err := users.Insert(ctx, user)
	require.NoError(t, err)
	require.False(t, saved.ID.IsZero())

	_, err = users.Insert(ctx, user)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrDuplicateKey)

	found, err := users.FindByUsername(ctx, "mluukkai")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)

	_, err = users.FindByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
