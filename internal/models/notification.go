package models

import "time"

// NotificationType categorises dashboard announcements.
type NotificationType string

const (
	NotificationUrgent  NotificationType = "urgent"
	NotificationGeneral NotificationType = "general"
	NotificationEvent   NotificationType = "event"
)

// NotificationAudience scopes who sees an announcement.
type NotificationAudience string

const (
	AudienceAll      NotificationAudience = "all"
	AudienceStudents NotificationAudience = "students"
	AudienceTeachers NotificationAudience = "teachers"
)

// Notification is a dashboard announcement.
type Notification struct {
	ID             string               `db:"id" json:"id"`
	Title          string               `db:"title" json:"title"`
	Content        string               `db:"content" json:"content"`
	Description    *string              `db:"description" json:"description,omitempty"`
	ImageURL       *string              `db:"image_url" json:"image_url,omitempty"`
	ExternalURL    *string              `db:"external_url" json:"external_url,omitempty"`
	Type           NotificationType     `db:"type" json:"type"`
	TargetAudience NotificationAudience `db:"target_audience" json:"target_audience"`
	CreatedBy      *string              `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows announcement listings.
type NotificationFilter struct {
	Type     NotificationType
	Audience NotificationAudience
	Page     int
	PageSize int
}
