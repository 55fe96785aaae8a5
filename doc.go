// Package auth implements user account management with stateless JWT
// sessions: credential storage, bcrypt password verification, token
// issuance and validation, and account lifecycle up to cascading deletion
// of owned records.
//
// Sessions:
//   - Tokens are self-contained bearer credentials signed with a shared
//     secret. The server keeps no session table, so logout is purely a
//     client/transport concern and any number of valid tokens may coexist
//     for one account. Rotating the signing secret invalidates all of them.
//
// Lifecycle:
//   - Lifecycle is the orchestration entry point. It validates credentials,
//     hashes passwords, talks to the Users and Workouts repositories, and
//     mints tokens through the shared TokenService. Account deletion runs
//     dependents-first inside a single transaction.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     lifecycle controller to describe signup, login, update, and deletion
//     events. Sinks run best-effort (errors are logged) so you can forward
//     to a database or queue without blocking authentication.
package auth
