package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VaultTrack/internal/broker/messages"
	"github.com/BearBump/VaultTrack/internal/models"
)

type fakeRepo struct {
	saved []models.Notification
	err   error
}

func (r *fakeRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if r.err != nil {
		return models.Notification{}, r.err
	}
	n.ID = "n-1"
	r.saved = append(r.saved, n)
	return n, nil
}

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestCreateNotification_PersistsThenPublishes(t *testing.T) {
	repo := &fakeRepo{}
	prod := &fakeProducer{}
	svc := New(repo, prod, "vault.notifications")

	n, err := svc.CreateNotification(context.Background(), models.Notification{OwnerID: "u1", Message: "X: Delivered"})
	require.NoError(t, err)
	require.Equal(t, "n-1", n.ID)
	require.Len(t, repo.saved, 1)

	require.Equal(t, "vault.notifications", prod.topic)
	require.Equal(t, []byte("u1"), prod.key)
	var msg messages.NotificationCreated
	require.NoError(t, json.Unmarshal(prod.value, &msg))
	require.Equal(t, "n-1", msg.Notification.ID)
	require.Equal(t, "X: Delivered", msg.Notification.Message)
}

func TestCreateNotification_PublishFailureIgnored(t *testing.T) {
	svc := New(&fakeRepo{}, &fakeProducer{err: errors.New("kafka down")}, "t")
	n, err := svc.CreateNotification(context.Background(), models.Notification{OwnerID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "n-1", n.ID)
}

func TestCreateNotification_RepoFailureNotPublished(t *testing.T) {
	prod := &fakeProducer{}
	svc := New(&fakeRepo{err: errors.New("pg down")}, prod, "t")
	_, err := svc.CreateNotification(context.Background(), models.Notification{})
	require.Error(t, err)
	require.Nil(t, prod.value)
}

func TestCreateNotification_NoProducer(t *testing.T) {
	repo := &fakeRepo{}
	_, err := New(repo, nil, "").CreateNotification(context.Background(), models.Notification{})
	require.NoError(t, err)
	require.Len(t, repo.saved, 1)
}
