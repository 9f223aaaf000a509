package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
	"sobytnik/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	fail      func(attempt int) error
	attempts  int
}

func (f *fakeDeliverer) Send(ctx context.Context, user *models.User, templateID string, tokens map[string]string, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail != nil {
		if err := f.fail(f.attempts); err != nil {
			return err
		}
	}
	f.delivered = append(f.delivered, templateID)
	return nil
}

func (f *fakeDeliverer) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func newWorker(t *testing.T, deliverer domain.Notifier, client *redis.Client, retry RetryPolicy) *NotifyWorker {
	t.Helper()
	logger := zerolog.Nop()
	return NewNotifyWorker(deliverer, client, retry, "notify:queue", "notify:deadletter", &logger)
}

func startWorker(t *testing.T, w *NotifyWorker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	t.Cleanup(cancel)
	return cancel
}

func TestRetryPolicy_NextDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{8, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_Defaults(t *testing.T) {
	var policy RetryPolicy
	assert.Equal(t, 2*time.Second, policy.NextDelay(1))
	assert.Equal(t, 4*time.Second, policy.NextDelay(2))
}

func TestNotifyWorker_DeliversFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deliverer := &fakeDeliverer{}
	w := newWorker(t, deliverer, client, RetryPolicy{})
	startWorker(t, w)

	err := w.Enqueue(context.Background(), notify.Task{
		ID:         "task-1",
		UserID:     1,
		Email:      "user@example.com",
		TemplateID: models.TemplateBookingConfirmed,
		Channel:    models.ChannelEmail,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return deliverer.deliveredCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestNotifyWorker_LocalFallbackWithoutRedis(t *testing.T) {
	deliverer := &fakeDeliverer{}
	w := newWorker(t, deliverer, nil, RetryPolicy{})
	startWorker(t, w)

	err := w.Enqueue(context.Background(), notify.Task{
		ID:         "task-1",
		UserID:     1,
		TemplateID: models.TemplateBookingPromoted,
		Channel:    models.ChannelEmail,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return deliverer.deliveredCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestNotifyWorker_RetriesTransientFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deliverer := &fakeDeliverer{
		fail: func(attempt int) error {
			if attempt == 1 {
				return fmt.Errorf("smtp timeout")
			}
			return nil
		},
	}
	w := newWorker(t, deliverer, client, RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2})
	startWorker(t, w)

	err := w.Enqueue(context.Background(), notify.Task{
		ID:         "task-1",
		UserID:     1,
		TemplateID: models.TemplateBookingConfirmed,
		Channel:    models.ChannelEmail,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return deliverer.deliveredCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestNotifyWorker_DeadLetterOnTemplateError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deliverer := &fakeDeliverer{
		fail: func(attempt int) error {
			return fmt.Errorf("%w: broken", domain.ErrTemplate)
		},
	}
	w := newWorker(t, deliverer, client, RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond})
	startWorker(t, w)

	err := w.Enqueue(context.Background(), notify.Task{
		ID:         "task-1",
		UserID:     1,
		TemplateID: "broken_template",
		Channel:    models.ChannelEmail,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(context.Background(), "notify:deadletter").Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, deliverer.deliveredCount())
}

func TestNotifyWorker_DeadLetterOnExhaustedRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deliverer := &fakeDeliverer{
		fail: func(attempt int) error { return fmt.Errorf("smtp down") },
	}
	w := newWorker(t, deliverer, client, RetryPolicy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond})
	startWorker(t, w)

	err := w.Enqueue(context.Background(), notify.Task{
		ID:         "task-1",
		UserID:     1,
		TemplateID: models.TemplateBookingConfirmed,
		Channel:    models.ChannelEmail,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(context.Background(), "notify:deadletter").Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyWorker_EnqueueValidation(t *testing.T) {
	deliverer := &fakeDeliverer{}
	w := newWorker(t, deliverer, nil, RetryPolicy{})

	err := w.Enqueue(context.Background(), notify.Task{ID: "task-1"})
	assert.Error(t, err, "template id is required")
}
