package entity

import "time"

const (
	NotificationStatusUnread = "UNREAD"
	NotificationStatusRead   = "READ"
)

type Notification struct {
	ID uint64

	UserID  string
	Title   string
	Message string
	Status  string

	CreatedAt time.Time
}
