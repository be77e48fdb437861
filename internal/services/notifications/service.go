package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/VaultTrack/internal/broker/messages"
	"github.com/BearBump/VaultTrack/internal/models"
)

type Repository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service stores notifications and fans them out to push delivery. The
// stored row is the source of truth; a failed publish is only logged.
type Service struct {
	repo     Repository
	producer Producer
	topic    string
}

func New(repo Repository, producer Producer, topic string) *Service {
	return &Service{repo: repo, producer: producer, topic: topic}
}

func (s *Service) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	saved, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	if s.producer == nil || s.topic == "" {
		return saved, nil
	}

	b, err := json.Marshal(messages.NotificationCreated{Notification: saved})
	if err != nil {
		slog.Error("marshal notification", "notification_id", saved.ID, "error", err.Error())
		return saved, nil
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(saved.OwnerID), b); err != nil {
		slog.Warn("publish notification", "notification_id", saved.ID, "owner_id", saved.OwnerID, "error", err.Error())
	}
	return saved, nil
}
