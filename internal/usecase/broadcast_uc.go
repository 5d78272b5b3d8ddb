package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
	"telegram-miniapp/internal/infra/worker"
)

var ErrBroadcastInProgress = errors.New("a newsletter broadcast is already running")

const broadcastLockKey = "lock:broadcast:newsletter"

type BroadcastUseCase interface {
	// BroadcastNewsletter queues one notification per subscriber and returns how many were queued.
	// Delivery happens in the background.
	BroadcastNewsletter(ctx context.Context, subject, body string) (int, error)
}

type broadcastUC struct {
	subs       repository.SubscriberRepository
	notifier   NotificationUseCase
	workerPool *worker.Pool
	locker     red.Locker
	interval   time.Duration
	log        *zerolog.Logger
}

// NewBroadcastUseCase builds the broadcaster. locker may be nil when a single instance runs.
func NewBroadcastUseCase(
	subs repository.SubscriberRepository,
	notifier NotificationUseCase,
	pool *worker.Pool,
	locker red.Locker,
	perSecond int,
	logger *zerolog.Logger,
) BroadcastUseCase {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &broadcastUC{
		subs:       subs,
		notifier:   notifier,
		workerPool: pool,
		locker:     locker,
		interval:   time.Second / time.Duration(perSecond),
		log:        logger,
	}
}

func (uc *broadcastUC) BroadcastNewsletter(ctx context.Context, subject, body string) (int, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.BroadcastNewsletter")()
	if strings.TrimSpace(body) == "" {
		return 0, domain.ErrInvalidArgument
	}

	var token string
	if uc.locker != nil {
		t, err := uc.locker.TryLock(ctx, broadcastLockKey, 10*time.Minute)
		if err != nil {
			if errors.Is(err, red.ErrLockHeld) {
				return 0, ErrBroadcastInProgress
			}
			return 0, fmt.Errorf("acquire broadcast lock: %w", err)
		}
		token = t
	}

	subs, err := uc.subs.List(ctx, repository.NoTX, 0, 0)
	if err != nil {
		uc.unlock(token)
		uc.log.Error().Err(err).Msg("failed to list subscribers for broadcast")
		return 0, err
	}

	text := body
	if s := strings.TrimSpace(subject); s != "" {
		text = s + "\n\n" + body
	}

	// Queuing outlives the request; tasks run under the pool's context.
	go func() {
		defer uc.unlock(token)
		throttle := time.NewTicker(uc.interval)
		defer throttle.Stop()

		uc.log.Info().Int("subscriber_count", len(subs)).Msg("starting newsletter broadcast")
		for i, s := range subs {
			select {
			case <-uc.workerPool.Done():
				uc.abort(len(subs) - i)
				return
			case <-throttle.C:
			}
			if err := uc.workerPool.Submit(uc.createSendTask(s, text)); err != nil {
				if errors.Is(err, worker.ErrStopped) {
					uc.abort(len(subs) - i)
					return
				}
				metrics.IncBroadcastTask("dropped")
				uc.log.Warn().Err(err).Str("user_id", s.UserID).Msg("failed to submit broadcast task")
			}
		}
		uc.log.Info().Msg("newsletter broadcast finished queuing")
	}()

	return len(subs), nil
}

// createSendTask returns nil even on non-delivery so the pool does not log it twice.
func (uc *broadcastUC) createSendTask(s *model.Subscriber, text string) worker.Task {
	return func(ctx context.Context) error {
		res, err := uc.notifier.Notify(ctx, s.UserID, text)
		switch {
		case err != nil:
			metrics.IncBroadcastTask("failed")
			uc.log.Warn().Err(err).Str("user_id", s.UserID).Msg("broadcast notify rejected")
		case res.Delivered:
			metrics.IncBroadcastTask("delivered")
		default:
			metrics.IncBroadcastTask(string(res.Reason))
		}
		return nil
	}
}

func (uc *broadcastUC) abort(remaining int) {
	metrics.IncBroadcastTask("aborted")
	uc.log.Warn().Int("remaining", remaining).Msg("worker pool stopped; newsletter broadcast aborted")
}

func (uc *broadcastUC) unlock(token string) {
	if uc.locker == nil || token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.locker.Unlock(ctx, broadcastLockKey, token); err != nil {
		uc.log.Warn().Err(err).Msg("failed to release broadcast lock")
	}
}
