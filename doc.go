// Package userapi implements an identity and session-token service: it
// authenticates human users and trusted backend machines, issues and
// validates time-bounded session tokens, stores salted password hashes,
// and brokers per-user private id/hash pairs.
//
// Core pieces:
//   - Hasher computes the deterministic salted credential digest.
//   - Generator mints collision-checked short identifiers.
//   - IdentityStore owns user records and password verification.
//   - TokenCodec encodes and decodes signed session tokens.
//   - TokenStore tracks issued tokens so a logout can invalidate a token
//     before its embedded expiry.
//   - Gate decides whether a verified token may act on a target identity.
//   - Pairs generates and persists named anonymous id/hash pairs.
//
// The HTTP surface is a thin fiber controller over these pieces; see
// Controller.RegisterRoutes for the route table.
package userapi
