// Package bookshelf provides a GraphQL API for a catalog of books and
// authors, backed by MongoDB for persistence and NATS for event fanout.
//
// # Architecture
//
// The server exposes a single GraphQL endpoint that serves queries and
// mutations over HTTP and subscriptions over the graphql-ws WebSocket
// protocol. The packages split along infrastructure lines:
//
//   - config: environment-driven configuration with validated defaults
//   - store: document models and the MongoDB and in-memory stores
//   - token: JWT signing and verification for bearer authentication
//   - natsclient: managed NATS connection with reconnect handling
//   - events: the book-added broker over NATS, with an in-process
//     implementation for tests
//   - metric: Prometheus instrumentation
//   - gateway/graphql: schema, resolvers, authentication middleware and
//     the HTTP server
//
// # Authentication
//
// Clients log in with a username and password and receive a signed JWT.
// Subsequent requests carry it as an Authorization bearer header; the
// gateway resolves it to a user before query execution. Queries are
// public, mutations require an authenticated user.
//
// # Events
//
// Every added book is published to a NATS subject. Subscribers of the
// bookAdded GraphQL subscription receive new books as they are added,
// with no replay of history.
package bookshelf
