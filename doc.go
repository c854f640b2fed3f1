// Package accounts implements the credential and token lifecycle for a
// single tenant user-account service: password verification and session
// issuance, per-request session validation, and single-use expiring tokens
// for account activation and password recovery.
//
// User lifecycle:
//   - Users carry a UserStatus persisted via Bun. Accounts are created
//     inactive and move to active exactly once, through the activation flow.
//     UserStateMachine centralizes the transition graph so every caller
//     shares the same invariants.
//
// Ephemeral tokens:
//   - ActionTokens is the store for single-use activation and password reset
//     tokens. Issuance supersedes any live token for the same user and
//     purpose; redemption is an atomic check-and-set, so concurrent redeem
//     attempts with the same token produce exactly one winner.
//
// Sessions:
//   - Auther signs HS256 JWTs carrying the identity id plus display claims.
//     Session validation always re-fetches the identity from the store; the
//     token is a capability to look up current state, not a cached snapshot.
package accounts
