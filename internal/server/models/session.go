// Package models defines the records persisted by the bot server.
package models

import (
	"slices"
	"time"
)

// SessionStatus is the conversation state of a session.
type SessionStatus string

const (
	StatusAwaitingUserSelection SessionStatus = "awaiting_user_selection"
	StatusAwaitingName          SessionStatus = "awaiting_new_user_details_name"
	StatusAwaitingGender        SessionStatus = "awaiting_new_user_details_gender"
	StatusAwaitingAge           SessionStatus = "awaiting_new_user_details_age"
	StatusAwaitingPayment       SessionStatus = "awaiting_payment_confirmation"
	StatusCompleted             SessionStatus = "completed"
	StatusCancelled             SessionStatus = "cancelled"
)

// transitions lists, for each non-terminal status, the statuses it may move to.
var transitions = map[SessionStatus][]SessionStatus{
	StatusAwaitingUserSelection: {StatusAwaitingName, StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingName:          {StatusAwaitingGender, StatusCancelled},
	StatusAwaitingGender:        {StatusAwaitingAge, StatusCancelled},
	StatusAwaitingAge:           {StatusAwaitingPayment, StatusCancelled},
	StatusAwaitingPayment:       {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to SessionStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether s ends a conversation.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Draft holds profile fields collected during self-registration.
type Draft struct {
	FullName string `json:"fullName,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Age      int    `json:"age,omitempty"`
}

// Session is one multi-turn conversation with a mobile number.
type Session struct {
	ID             string
	Address        string
	Status         SessionStatus
	Measurement    Measurement
	SelectedUserID *int64
	Draft          *Draft
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Active reports whether the session is non-terminal and unexpired at now.
func (s *Session) Active(now time.Time) bool {
	return !s.Status.Terminal() && now.Before(s.ExpiresAt)
}

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	SelectedUserID *int64
	Draft          *Draft
}
