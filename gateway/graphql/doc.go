// Package graphql serves the Bookshelf catalog API.
//
// The gateway wires three pieces together:
//
//   - Schema: the GraphQL type system and operation signatures, parsed
//     against the root Resolver with graph-gophers/graphql-go.
//   - Resolver: query, mutation and subscription resolvers over the
//     store interfaces, the token service and the event broker. All
//     dependencies are injected; the package holds no singletons.
//   - Server: the HTTP front, serving queries and graphql-ws
//     subscription connections on one path, plus health, metrics and
//     the playground.
//
// Authentication is a bearer token on the Authorization header. A
// missing header degrades to an anonymous context; a present-but-invalid
// token fails the request. Resolvers that mutate state require an
// authenticated user, except login.
//
// The bookAdded subscription is fed by the events.Broker: every
// successful addBook publishes one event, delivered best-effort to the
// clients connected at that moment.
package graphql
