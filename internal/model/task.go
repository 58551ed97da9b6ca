// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. The `json:"..."` struct tags
// control how encoding/json serializes them, which is also the shape the
// API returns to clients.
package model

import "time"

// Task is a single unit of work owned by exactly one user.
//
// OWNERSHIP:
// UserID is set once, at creation, from the authenticated session. Nothing in
// the application ever changes it afterwards, which is what lets the service
// layer compare it against the caller before any mutation.
//
//	task := Task{ID: "cv37rs3pp9olc6atsptg", Title: "Buy milk", UserID: "cv37..."}
//	json.Marshal(task) → {"id":"cv37...","title":"Buy milk","done":false,...}
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
}

// TaskPage is one pagination window of a user's tasks plus the metadata a
// client needs to render page controls.
type TaskPage struct {
	Items      []Task `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}
