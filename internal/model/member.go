package model

import "time"

// Member is a chat-group participant tasks can be assigned to.
// Members are registered lazily the first time they are mentioned in a
// create command; (name, group_id) is unique.
type Member struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	GroupID    string    `json:"group_id" db:"group_id"`
	LineUserID *string   `json:"line_user_id,omitempty" db:"line_user_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
