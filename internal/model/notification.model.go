package model

import "time"

// Notification is the payload carried on the notification stream.
type Notification struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
