// Package session refreshes user credentials against the OIDC provider.
//
// A refresh is a read-modify-write on the user row (read the stored
// refresh token, exchange it, store the rotated one), so it runs under
// the same per-user lock that serializes role mutations. After a
// successful exchange the user's permission snapshot is invalidated so
// claims-derived state is rebuilt on the next read.
package session
