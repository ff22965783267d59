// Package notification sends customer push notifications at most once per scope.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/repository"
)

// Notification outcomes
const (
	OutcomeSent      = "sent"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Pusher delivers a notification to the customer's device
type Pusher interface {
	Push(ctx context.Context, customer *domain.Customer, title, body string) error
}

// Recorder counts notification outcomes
type Recorder interface {
	Notification(notificationType, outcome string)
}

// LogPusher writes notifications to the log instead of a push provider
type LogPusher struct {
	log logrus.FieldLogger
}

func NewLogPusher(log logrus.FieldLogger) *LogPusher {
	return &LogPusher{log: log}
}

func (p *LogPusher) Push(_ context.Context, customer *domain.Customer, title, body string) error {
	p.log.WithFields(logrus.Fields{
		"customer_id":  customer.ID,
		"has_device":   customer.DeviceToken != nil,
		"notification": title,
	}).Info(body)
	return nil
}

type Service struct {
	repo      repository.NotificationRepository
	customers repository.CustomerRepository
	pusher    Pusher
	recorder  Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(repo repository.NotificationRepository, customers repository.CustomerRepository, pusher Pusher, recorder Recorder, log logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		pusher:    pusher,
		recorder:  recorder,
		log:       log,
		now:       time.Now,
	}
}

// Message is one notification to deliver
type Message struct {
	CustomerID uuid.UUID
	Type       string
	ScopeKey   string
	Title      string
	Body       string
}

// Send records msg and pushes it. It reports false without pushing when the same
// (type, scope) was already sent. The log entry is written first, so a failed push is
// not retried.
func (s *Service) Send(ctx context.Context, msg Message) (bool, error) {
	log := s.log.WithFields(logrus.Fields{
		"customer_id": msg.CustomerID,
		"type":        msg.Type,
		"scope_key":   msg.ScopeKey,
	})

	customer, err := s.customers.GetByID(ctx, msg.CustomerID)
	if err != nil {
		s.record(msg.Type, OutcomeFailed)
		return false, err
	}

	recorded, err := s.repo.Record(ctx, &domain.NotificationLog{
		ID:         uuid.New(),
		Type:       msg.Type,
		ScopeKey:   msg.ScopeKey,
		CustomerID: msg.CustomerID,
		Title:      msg.Title,
		Body:       msg.Body,
		SentAt:     s.now().UTC(),
	})
	if err != nil {
		s.record(msg.Type, OutcomeFailed)
		return false, err
	}
	if !recorded {
		log.Debug("Notification already sent")
		s.record(msg.Type, OutcomeDuplicate)
		return false, nil
	}

	if err := s.pusher.Push(ctx, customer, msg.Title, msg.Body); err != nil {
		log.WithError(err).Warn("Push delivery failed")
		s.record(msg.Type, OutcomeFailed)
		return true, nil
	}

	s.record(msg.Type, OutcomeSent)
	return true, nil
}

func (s *Service) record(notificationType, outcome string) {
	if s.recorder != nil {
		s.recorder.Notification(notificationType, outcome)
	}
}
