// Package user implements the simulated banking users.
//
// A Session authenticates once with a random test credential, keeps the JWT
// and user id, and caches the user's account list after the first successful
// fetch. Failures are recorded, never raised: an unauthenticated session
// keeps running and its calls simply fail with 401.
//
// Three scenarios are defined, weighted 6:3:1 by default:
//   - browse: fetch accounts, view one account's details
//   - active: fetch accounts, transfer a random amount between two of them
//   - history: view the transaction history of one account, or of a
//     fallback test account when the user has none
//
// Mix hands out scenarios by smooth weighted round-robin, so every run of
// sum(weights) picks contains each scenario exactly weight times.
//
//	mix, _ := user.NewMix(user.DefaultWeights())
//	s := user.NewSession(deps, seed)
//	u := user.New(mix.Next(), s, user.DefaultWaitTime())
//	go u.Run(ctx)
package user
