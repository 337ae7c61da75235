package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sakolwit/school-portal-api/internal/models"
)

// NotificationRepository persists dashboard announcements.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// List returns announcements newest first per the provided filter.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	base := "FROM notifications WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Audience != "" {
		conditions = append(conditions, fmt.Sprintf("(target_audience = $%d OR target_audience = 'all')", len(args)+1))
		args = append(args, filter.Audience)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, content, description, image_url, external_url, type, target_audience, created_by, created_at
%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// FindByID loads one announcement.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT id, title, content, description, image_url, external_url, type, target_audience, created_by, created_at
FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// Create inserts a new announcement.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, title, content, description, image_url, external_url, type, target_audience, created_by, created_at)
VALUES (:id, :title, :content, :description, :image_url, :external_url, :type, :target_audience, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Update modifies an existing announcement.
func (r *NotificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	const query = `UPDATE notifications SET title = :title, content = :content, description = :description, image_url = :image_url, external_url = :external_url, type = :type, target_audience = :target_audience WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// Delete removes an announcement.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
