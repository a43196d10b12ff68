// Package bankapi is a thin HTTP client for the online banking API that the
// load scenarios exercise.
//
// Every call returns a *Response rather than an error. Transport failures
// (dial errors, timeouts, cancelled contexts) are reported with StatusCode 0
// and Err set, so callers can classify them alongside HTTP statuses. The
// client never retries.
//
// Each call also carries the request name used to group statistics, e.g.
// "Auth - Login" or "Account - Transfer Money".
//
//	c := bankapi.New(bankapi.Config{BaseURL: "http://gateway-service:8080"})
//	resp := c.Login(ctx, "user1@example.com", "password123")
//	if resp.StatusCode == http.StatusOK { ... }
package bankapi
