package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/errors"
)

// Memory is an in-memory implementation of the store interfaces with the
// same semantics as the MongoDB one, including the unique constraints on
// author name and username. It backs the test suite and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	books   map[primitive.ObjectID]Book
	authors map[primitive.ObjectID]Author
	users   map[primitive.ObjectID]User
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		books:   make(map[primitive.ObjectID]Book),
		authors: make(map[primitive.ObjectID]Author),
		users:   make(map[primitive.ObjectID]User),
	}
}

// Books returns the book store
func (m *Memory) Books() BookStore { return &memoryBooks{m} }

// Authors returns the author store
func (m *Memory) Authors() AuthorStore { return &memoryAuthors{m} }

// Users returns the user store
func (m *Memory) Users() UserStore { return &memoryUsers{m} }

type memoryBooks struct {
	m *Memory
}

func (s *memoryBooks) Count(_ context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.books)), nil
}

func (s *memoryBooks) All(_ context.Context, filter BookFilter) ([]Book, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	books := []Book{}
	for _, b := range s.m.books {
		if filter.AuthorID != nil && b.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.Genre != nil && !containsGenre(b.Genres, *filter.Genre) {
			continue
		}
		books = append(books, b)
	}
	return books, nil
}

func (s *memoryBooks) Genres(_ context.Context) ([]string, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	seen := make(map[string]struct{})
	genres := []string{}
	for _, b := range s.m.books {
		for _, g := range b.Genres {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			genres = append(genres, g)
		}
	}
	return genres, nil
}

func (s *memoryBooks) CountByAuthor(_ context.Context, authorID primitive.ObjectID) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var n int64
	for _, b := range s.m.books {
		if b.AuthorID == authorID {
			n++
		}
	}
	return n, nil
}

func (s *memoryBooks) Insert(_ context.Context, book Book) (Book, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	book.ID = primitive.NewObjectID()
	s.m.books[book.ID] = book
	return book, nil
}

type memoryAuthors struct {
	m *Memory
}

func (s *memoryAuthors) Count(_ context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.authors)), nil
}

func (s *memoryAuthors) All(_ context.Context) ([]Author, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	authors := []Author{}
	for _, a := range s.m.authors {
		authors = append(authors, a)
	}
	return authors, nil
}

func (s *memoryAuthors) FindByID(_ context.Context, id primitive.ObjectID) (Author, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	author, ok := s.m.authors[id]
	if !ok {
		return Author{}, errors.ErrNotFound
	}
	return author, nil
}

func (s *memoryAuthors) FindByName(_ context.Context, name string) (Author, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.findByNameLocked(name)
}

func (s *memoryAuthors) findByNameLocked(name string) (Author, error) {
	for _, a := range s.m.authors {
		if a.Name == name {
			return a, nil
		}
	}
	return Author{}, errors.ErrNotFound
}

func (s *memoryAuthors) FindOrCreate(_ context.Context, name string) (Author, error) {
	candidate, err := NewAuthor(name)
	if err != nil {
		return Author{}, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if author, err := s.findByNameLocked(candidate.Name); err == nil {
		return author, nil
	}

	candidate.ID = primitive.NewObjectID()
	s.m.authors[candidate.ID] = candidate
	return candidate, nil
}

func (s *memoryAuthors) SetBorn(_ context.Context, name string, born int32) (Author, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	author, err := s.findByNameLocked(name)
	if err != nil {
		return Author{}, err
	}

	author.Born = &born
	s.m.authors[author.ID] = author
	return author, nil
}

type memoryUsers struct {
	m *Memory
}

func (s *memoryUsers) Count(_ context.Context) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.users)), nil
}

func (s *memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	user, ok := s.m.users[id]
	if !ok {
		return User{}, errors.ErrNotFound
	}
	return user, nil
}

func (s *memoryUsers) FindByUsername(_ context.Context, username string) (User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, u := range s.m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, errors.ErrNotFound
}

func (s *memoryUsers) Insert(_ context.Context, user User) (User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, u := range s.m.users {
		if u.Username == user.Username {
			return User{}, errors.WrapInvalid(errors.ErrDuplicateKey, "UserStore", "Insert", "insert user")
		}
	}

	user.ID = primitive.NewObjectID()
	s.m.users[user.ID] = user
	return user, nil
}

func containsGenre(genres []string, genre string) bool {
	for _, g := range genres {
		if g == genre {
			return true
		}
	}
	return false
}
