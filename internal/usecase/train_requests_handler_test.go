package usecase

import (
	"context"
	"testing"

	"FinSelect/internal/domain/models"
	"FinSelect/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainRequestsHandler_Handle(t *testing.T) {
	f := newFixture(t, 300)
	h := NewTrainRequestsHandler("finselect.train", NewTrainService(f.builder, nil), f.metrics, nil)
	assert.Equal(t, "finselect.train", h.Topic())

	err := h.Handle(context.Background(), []byte(`{broken`))
	assert.True(t, queue.IsPermanent(err))
	assert.Equal(t, 1, f.metrics.errors["consumer_unmarshal"])

	err = h.Handle(context.Background(), []byte(`{"n":300}`))
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, ErrInvalidParams)

	err = h.Handle(context.Background(), []byte(`{"symbol":"TEST","n":300,"alpha":3}`))
	assert.True(t, queue.IsPermanent(err))

	// Without a queue the service builds inline.
	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"TEST","n":300}`)))
	assert.Equal(t, 1, f.metrics.buildCount(models.StatusDone))
	assert.Equal(t, 1, f.publisher.count())
}

func TestTrainRequestsHandler_DataErrorsArePermanent(t *testing.T) {
	f := newFixture(t, 20)
	h := NewTrainRequestsHandler("finselect.train", NewTrainService(f.builder, nil), f.metrics, nil)

	err := h.Handle(context.Background(), []byte(`{"symbol":"TEST","n":300}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}
