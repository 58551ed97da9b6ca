// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the identity anchor every Task hangs off.
//
// We support several sign-in providers (Google, GitHub, a configured
// credential account), so the provider's own user ID is never stored. The
// EMAIL is the linking key: the first sign-in with an unknown email creates a
// User, and every later sign-in with that email, from any provider, resolves
// to the same internal ID.
//
// WHY Name and Image AS PLAIN STRINGS?
// Both are optional. An empty string is the zero value and is safe to
// display, so we avoid nullable pointers in Go code and store '' in the DB.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}
