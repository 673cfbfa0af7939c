package service

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// MessageService stores contact form messages and their triage state.
type MessageService struct {
	repo     MessageRepository
	notifier ChangeNotifier
	logger   *zap.Logger
}

func NewMessageService(repo MessageRepository, notifier ChangeNotifier) *MessageService {
	return &MessageService{repo: repo, notifier: notifier, logger: util.GetLogger()}
}

// Send records a contact message as unread.
func (s *MessageService) Send(ctx context.Context, form checkout.Contact) (*models.Message, error) {
	if err := checkout.ValidateContact(&form); err != nil {
		util.CheckoutValidationFailures.WithLabelValues("contact").Inc()
		return nil, err
	}

	m := &models.Message{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Phone:     form.Phone,
		Subject:   form.Subject,
		Body:      form.Message,
		Status:    models.MessageStatusUnread,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		s.logger.Error("Failed to store message", zap.String("email", m.Email), zap.Error(err))
		return nil, &PersistenceError{Op: "create message", Err: err}
	}

	s.notifier.Publish(ctx, models.CollectionMessages, models.ChangeInsert, strconv.FormatInt(m.ID, 10), m)
	return m, nil
}

func (s *MessageService) List(ctx context.Context, status string) ([]models.Message, error) {
	if status != "" && !models.IsValidMessageStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListMessages(ctx, status)
}

// SetStatus changes a message's status. Nil notes leave the stored notes alone.
func (s *MessageService) SetStatus(ctx context.Context, id int64, status string, notes *string) (*models.Message, error) {
	if !models.IsValidMessageStatus(status) {
		return nil, ErrInvalidStatus
	}
	m, err := s.repo.UpdateMessageStatus(ctx, id, status, notes)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "update message", Err: err}
	}
	s.notifier.Publish(ctx, models.CollectionMessages, models.ChangeUpdate, strconv.FormatInt(id, 10), m)
	return m, nil
}
