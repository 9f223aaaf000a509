package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/metrics"
	"sobytnik/internal/models"
	"sobytnik/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotifyWorker разгребает очередь уведомлений: redis — основной канал,
// внутренний буфер — запасной на случай недоступности redis. Безнадежные
// задачи уходят в dead-letter список для ручного разбора.
type NotifyWorker struct {
	deliverer     domain.Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	local         chan notify.Task
	queueKey      string
	deadLetterKey string
	logger        *zerolog.Logger
}

func NewNotifyWorker(deliverer domain.Notifier, redisClient *redis.Client, retry RetryPolicy, queueKey, deadLetterKey string, logger *zerolog.Logger) *NotifyWorker {
	if queueKey == "" {
		queueKey = "notify:queue"
	}
	if deadLetterKey == "" {
		deadLetterKey = "notify:deadletter"
	}
	return &NotifyWorker{
		deliverer:     deliverer,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		local:         make(chan notify.Task, models.NotifyQueueSize),
		queueKey:      queueKey,
		deadLetterKey: deadLetterKey,
		logger:        logger,
	}
}

// Enqueue ставит задачу в очередь. Реализует notify.Enqueuer.
func (w *NotifyWorker) Enqueue(ctx context.Context, task notify.Task) error {
	if task.TemplateID == "" {
		return errors.New("template id is required")
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err == nil {
			return nil
		} else {
			w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("redis push failed, using local queue")
		}
	}

	select {
	case w.local <- task:
		return nil
	default:
		return errors.New("notification queue is full")
	}
}

// Start запускает цикл доставки; останавливается по ctx.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Str("queue", w.queueKey).Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.local:
			w.process(ctx, task)
			continue
		default:
		}

		if task, ok := w.tryRedis(ctx); ok {
			w.process(ctx, task)
			continue
		}
		if w.redis == nil {
			// Без redis остается только буфер: ждем задач или остановки.
			select {
			case <-ctx.Done():
				return
			case task := <-w.local:
				w.process(ctx, task)
			}
		}
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (notify.Task, bool) {
	if w.redis == nil {
		return notify.Task{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return notify.Task{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return notify.Task{}, false
	}
	if len(res) != 2 {
		return notify.Task{}, false
	}

	var task notify.Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode queued task")
		return notify.Task{}, false
	}
	return task, true
}

func (w *NotifyWorker) process(ctx context.Context, task notify.Task) {
	err := w.deliverer.Send(ctx, task.Recipient(), task.TemplateID, task.Tokens, task.Channel)
	if err == nil {
		return
	}

	metrics.IncNotifyFailure()
	if errors.Is(err, domain.ErrTemplate) {
		// Повторять бессмысленно: шаблон не починится сам.
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("notification task rejected")
		w.pushDeadLetter(ctx, task)
		return
	}

	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(err).Str("task_id", task.ID).Int("attempts", attempt).
			Msg("notification task exhausted retries")
		w.pushDeadLetter(ctx, task)
		return
	}

	task.RetryCount = attempt
	delay := w.retryPolicy.NextDelay(attempt)
	w.logger.Warn().Err(err).Str("task_id", task.ID).Dur("retry_in", delay).Msg("notification delivery failed")

	requeue := task
	time.AfterFunc(delay, func() {
		if err := w.Enqueue(context.Background(), requeue); err != nil {
			w.logger.Error().Err(err).Str("task_id", requeue.ID).Msg("requeue failed")
		}
	})
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task notify.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.queueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task notify.Task) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push failed")
	}
}
