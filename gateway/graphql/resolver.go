package graphql

import (
	"context"
	"log/slog"

	gql "github.com/graph-gophers/graphql-go"

	"github.com/c360/bookshelf/errors"
	"github.com/c360/bookshelf/events"
	"github.com/c360/bookshelf/metric"
	"github.com/c360/bookshelf/store"
	"github.com/c360/bookshelf/token"
)

// Resolver is the root resolver. It holds every dependency the query,
// mutation and subscription resolvers need; nothing here is a package
// singleton.
type Resolver struct {
	books   store.BookStore
	authors store.AuthorStore
	users   store.UserStore
	tokens  *token.Service

	broker        events.Broker
	loginPassword string

	logger  *slog.Logger
	metrics *metric.Metrics
}

// ResolverDeps bundles the dependencies injected into the root resolver
type ResolverDeps struct {
	Books   store.BookStore
	Authors store.AuthorStore
	Users   store.UserStore
	Tokens  *token.Service
	Broker  events.Broker

	// LoginPassword is the fixed password logins are compared against
	LoginPassword string

	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// NewResolver creates the root resolver
func NewResolver(deps ResolverDeps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		books:         deps.Books,
		authors:       deps.Authors,
		users:         deps.Users,
		tokens:        deps.Tokens,
		broker:        deps.Broker,
		loginPassword: deps.LoginPassword,
		logger:        logger,
		metrics:       deps.Metrics,
	}
}

// ParseSchema parses the schema against the resolver
func ParseSchema(resolver *Resolver, maxDepth int) (*gql.Schema, error) {
	schema, err := gql.ParseSchema(Schema, resolver, gql.MaxDepth(maxDepth))
	if err != nil {
		return nil, errors.WrapFatal(err, "Resolver", "ParseSchema", "parse schema")
	}
	return schema, nil
}

// ---- Query ----

// BookCount returns the total number of books
func (r *Resolver) BookCount(ctx context.Context) (int32, error) {
	n, err := r.books.Count(ctx)
	if err != nil {
		r.logger.Error("bookCount failed", "error", err)
		return 0, errInternal("bookCount")
	}
	return int32(n), nil
}

// AuthorCount returns the total number of authors
func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.authors.Count(ctx)
	if err != nil {
		r.logger.Error("authorCount failed", "error", err)
		return 0, errInternal("authorCount")
	}
	return int32(n), nil
}

// AllBooksArgs are the optional filters of allBooks
type AllBooksArgs struct {
	Author *string
	Genre  *string
}

// AllBooks returns books, optionally filtered by author name and genre
func (r *Resolver) AllBooks(ctx context.Context, args AllBooksArgs) ([]*BookResolver, error) {
	filter := store.BookFilter{Genre: args.Genre}

	if args.Author != nil {
		author, err := r.authors.FindByName(ctx, *args.Author)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// Unknown author matches no books
				return []*BookResolver{}, nil
			}
			r.logger.Error("allBooks author lookup failed", "error", err)
			return nil, errInternal("allBooks")
		}
		filter.AuthorID = &author.ID
	}

	books, err := r.books.All(ctx, filter)
	if err != nil {
		r.logger.Error("allBooks failed", "error", err)
		return nil, errInternal("allBooks")
	}

	resolvers := make([]*BookResolver, len(books))
	for i, b := range books {
		resolvers[i] = r.bookResolver(b)
	}
	return resolvers, nil
}

// AllGenres returns the distinct genre strings across all books
func (r *Resolver) AllGenres(ctx context.Context) ([]string, error) {
	genres, err := r.books.Genres(ctx)
	if err != nil {
		r.logger.Error("allGenres failed", "error", err)
		return nil, errInternal("allGenres")
	}
	return genres, nil
}

// AllAuthors returns all authors with their computed book counts
func (r *Resolver) AllAuthors(ctx context.Context) ([]*AuthorResolver, error) {
	authors, err := r.authors.All(ctx)
	if err != nil {
		r.logger.Error("allAuthors failed", "error", err)
		return nil, errInternal("allAuthors")
	}

	resolvers := make([]*AuthorResolver, len(authors))
	for i, a := range authors {
		resolvers[i] = &AuthorResolver{author: a, books: r.books}
	}
	return resolvers, nil
}

// Me returns the authenticated user, or null for anonymous callers
func (r *Resolver) Me(ctx context.Context) *UserResolver {
	user, ok := CurrentUser(ctx)
	if !ok {
		return nil
	}
	return &UserResolver{user: user}
}

// ---- Mutation ----

// AddBookArgs are the arguments of addBook
type AddBookArgs struct {
	Title     string
	Author    string
	Published *int32
	Genres    []string
}

// AddBook persists a new book, creating its author on first mention, and
// notifies subscribers.
func (r *Resolver) AddBook(ctx context.Context, args AddBookArgs) (*BookResolver, error) {
	if _, ok := CurrentUser(ctx); !ok {
		return nil, errNotAuthenticated()
	}

	invalidArgs := map[string]interface{}{
		"title":  args.Title,
		"author": args.Author,
		"genres": args.Genres,
	}
	if args.Published != nil {
		invalidArgs["published"] = *args.Published
	}

	author, err := r.authors.FindOrCreate(ctx, args.Author)
	if err != nil {
		r.logger.Error("addBook author resolution failed", "author", args.Author, "error", err)
		return nil, writeError(err, "addBook", invalidArgs)
	}

	book, err := store.NewBook(args.Title, author.ID, args.Published, args.Genres)
	if err != nil {
		return nil, errInvalidInput(err, invalidArgs)
	}

	saved, err := r.books.Insert(ctx, book)
	if err != nil {
		r.logger.Error("addBook insert failed", "title", args.Title, "error", err)
		return nil, writeError(err, "addBook", invalidArgs)
	}

	if r.metrics != nil {
		r.metrics.BooksAdded.Inc()
	}

	// Fire-and-forget: a notification failure never fails the mutation
	if err := r.broker.PublishBookAdded(ctx, saved); err != nil {
		r.logger.Warn("bookAdded publish failed", "book", saved.ID.Hex(), "error", err)
	}

	r.logger.Info("book added", "title", saved.Title, "author", author.Name)
	return r.bookResolver(saved), nil
}

// EditAuthorArgs are the arguments of editAuthor
type EditAuthorArgs struct {
	Name      string
	SetBornTo int32
}

// EditAuthor sets an author's birth year. A miss on the name is a no-op
// returning null, not an error.
func (r *Resolver) EditAuthor(ctx context.Context, args EditAuthorArgs) (*AuthorResolver, error) {
	if _, ok := CurrentUser(ctx); !ok {
		return nil, errNotAuthenticated()
	}

	author, err := r.authors.SetBorn(ctx, args.Name, args.SetBornTo)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		r.logger.Error("editAuthor failed", "name", args.Name, "error", err)
		return nil, writeError(err, "editAuthor", map[string]interface{}{
			"name":      args.Name,
			"setBornTo": args.SetBornTo,
		})
	}

	return &AuthorResolver{author: author, books: r.books}, nil
}

// CreateUserArgs are the arguments of createUser
type CreateUserArgs struct {
	Username      string
	FavoriteGenre string
}

// CreateUser persists a new user account
func (r *Resolver) CreateUser(ctx context.Context, args CreateUserArgs) (*UserResolver, error) {
	if _, ok := CurrentUser(ctx); !ok {
		return nil, errNotAuthenticated()
	}

	invalidArgs := map[string]interface{}{
		"username":      args.Username,
		"favoriteGenre": args.FavoriteGenre,
	}

	user, err := store.NewUser(args.Username, args.FavoriteGenre)
	if err != nil {
		return nil, errInvalidInput(err, invalidArgs)
	}

	saved, err := r.users.Insert(ctx, user)
	if err != nil {
		r.logger.Error("createUser failed", "username", args.Username, "error", err)
		return nil, writeError(err, "createUser", invalidArgs)
	}

	r.logger.Info("user created", "username", saved.Username)
	return &UserResolver{user: saved}, nil
}

// LoginArgs are the arguments of login
type LoginArgs struct {
	Username string
	Password string
}

// Login authenticates a user and returns a signed token
func (r *Resolver) Login(ctx context.Context, args LoginArgs) (*TokenResolver, error) {
	user, err := r.users.FindByUsername(ctx, args.Username)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errWrongCredentials()
		}
		r.logger.Error("login lookup failed", "username", args.Username, "error", err)
		return nil, errInternal("login")
	}

	if args.Password != r.loginPassword {
		return nil, errWrongCredentials()
	}

	value, err := r.tokens.Sign(user)
	if err != nil {
		r.logger.Error("login token signing failed", "username", args.Username, "error", err)
		return nil, errInternal("login")
	}

	r.logger.Info("user logged in", "username", user.Username)
	return &TokenResolver{value: value, user: user}, nil
}

// ---- Subscription ----

// BookAdded streams every book added after the client subscribed
func (r *Resolver) BookAdded(ctx context.Context) (<-chan *BookResolver, error) {
	events, err := r.broker.SubscribeBookAdded(ctx)
	if err != nil {
		r.logger.Error("bookAdded subscribe failed", "error", err)
		return nil, errInternal("bookAdded")
	}

	if r.metrics != nil {
		r.metrics.ActiveSubscriptions.Inc()
	}

	out := make(chan *BookResolver)
	go func() {
		defer close(out)
		if r.metrics != nil {
			defer r.metrics.ActiveSubscriptions.Dec()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case book, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- r.bookResolver(book):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Resolver) bookResolver(book store.Book) *BookResolver {
	return &BookResolver{book: book, authors: r.authors}
}
