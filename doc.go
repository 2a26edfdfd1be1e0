// Package members implements the session-backed authorization model for a
// small membership site: signup/login with hashed passwords, server-side
// sessions referenced by an opaque cookie token, a members-only area, and
// an admin role that can list, promote, and demote users.
//
// Sessions:
//   - A Session is an immutable value created at login. It caches the
//     user's display name and role as they were at that moment; role
//     changes apply to future logins only. Sessions live in the
//     SessionStore and expire after SessionTTL.
//   - RequireAdmin is the single access-control gate. Every admin-only
//     operation (Promote, Demote, ListUsers) passes through it before
//     touching the stores.
//
// Storage:
//   - Users and sessions are persisted through Bun. The Users repository
//     embeds the shared go-repository-bun core; the session store is a
//     thin table-backed implementation that enforces expiry on read.
package members
