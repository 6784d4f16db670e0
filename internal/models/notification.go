package models

import "time"

// NotificationKind distinguishes success toasts from failure toasts.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationFailure NotificationKind = "error"
)

// Notification is a one-shot message shown to the operator.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Icon      string           `json:"icon"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
}
