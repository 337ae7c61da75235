package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
	"github.com/sakolwit/school-portal-api/pkg/jobs"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	Update(ctx context.Context, notification *models.Notification) error
	Delete(ctx context.Context, id string) error
}

type dispatchQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService manages dashboard announcements. Delivery fan-out is
// fire and forget through the in-process queue.
type NotificationService struct {
	repo      notificationRepository
	queue     dispatchQueue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. queue may be nil; created
// announcements are then stored without dispatch.
func NewNotificationService(repo notificationRepository, queue dispatchQueue, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, validator: validate, logger: logger}
}

// CreateNotificationRequest describes create payload.
type CreateNotificationRequest struct {
	Title          string  `json:"title" validate:"required"`
	Content        string  `json:"content" validate:"required"`
	Description    *string `json:"description"`
	ImageURL       *string `json:"image_url" validate:"omitempty,url"`
	ExternalURL    *string `json:"external_url" validate:"omitempty,url"`
	Type           string  `json:"type" validate:"required,oneof=urgent general event"`
	TargetAudience string  `json:"target_audience" validate:"required,oneof=all students teachers"`
}

// UpdateNotificationRequest describes update payload.
type UpdateNotificationRequest struct {
	Title          string  `json:"title" validate:"required"`
	Content        string  `json:"content" validate:"required"`
	Description    *string `json:"description"`
	ImageURL       *string `json:"image_url" validate:"omitempty,url"`
	ExternalURL    *string `json:"external_url" validate:"omitempty,url"`
	Type           string  `json:"type" validate:"required,oneof=urgent general event"`
	TargetAudience string  `json:"target_audience" validate:"required,oneof=all students teachers"`
}

// List returns announcements with pagination.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list notifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return notifications, pagination, nil
}

// Get loads one announcement.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load notification")
	}
	return notification, nil
}

// Create stores an announcement and enqueues its dispatch.
func (s *NotificationService) Create(ctx context.Context, req CreateNotificationRequest, createdBy string) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	notification := &models.Notification{
		Title:          req.Title,
		Content:        req.Content,
		Description:    req.Description,
		ImageURL:       req.ImageURL,
		ExternalURL:    req.ExternalURL,
		Type:           models.NotificationType(req.Type),
		TargetAudience: models.NotificationAudience(req.TargetAudience),
	}
	if createdBy != "" {
		notification.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create notification")
	}

	if s.queue != nil {
		job := jobs.Job{
			ID:       notification.ID,
			Type:     "notification.dispatch",
			Payload:  notification,
			Enqueued: time.Now().UTC(),
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("notification dispatch not enqueued", zap.String("id", notification.ID), zap.Error(err))
		}
	}
	return notification, nil
}

// Update modifies an existing announcement.
func (s *NotificationService) Update(ctx context.Context, id string, req UpdateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	notification.Title = req.Title
	notification.Content = req.Content
	notification.Description = req.Description
	notification.ImageURL = req.ImageURL
	notification.ExternalURL = req.ExternalURL
	notification.Type = models.NotificationType(req.Type)
	notification.TargetAudience = models.NotificationAudience(req.TargetAudience)

	if err := s.repo.Update(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update notification")
	}
	return notification, nil
}

// Delete removes an announcement.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete notification")
	}
	return nil
}
