package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	commitErr error
	i         int
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumer_Consume_CommitsAfterHandler(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Topic: "tracking.updated", Partition: 2, Key: []byte("k1"), Value: []byte("v1"), Offset: 1},
			{Topic: "tracking.updated", Partition: 2, Key: []byte("k2"), Value: []byte("v2"), Offset: 2},
		},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var got []Message
	err := c.Consume(context.Background(), func(ctx context.Context, m Message) error {
		got = append(got, m)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Len(t, got, 2)
	require.Equal(t, "k1", string(got[0].Key))
	require.Equal(t, "v2", string(got[1].Value))
	require.Equal(t, int64(2), got[1].Offset)
	require.Equal(t, 2, got[1].Partition)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_Consume_HandlerErrorSkipsCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Topic: "t", Partition: 1, Offset: 42, Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(ctx context.Context, m Message) error { return want })
	require.ErrorIs(t, err, want)
	require.ErrorContains(t, err, "handle t[1]@42")
	require.Empty(t, fr.committed)
}

func TestConsumer_Consume_CommitError(t *testing.T) {
	fr := &fakeReader{
		msgs:      []kafka.Message{{Key: []byte("k")}},
		commitErr: errors.New("rebalance"),
	}
	err := newConsumerWithReader(fr).Consume(context.Background(), func(ctx context.Context, m Message) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit message")
}

func TestConsumer_Close(t *testing.T) {
	fr := &fakeReader{}
	require.NoError(t, newConsumerWithReader(fr).Close())
	require.True(t, fr.closed)

	c := NewConsumer([]string{"localhost:0"}, "t", "g")
	require.Equal(t, "t", c.Topic())
	require.NoError(t, c.Close())
}
