package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*SubscriberRepo)(nil)

type SubscriberRepo struct {
	mu   sync.RWMutex
	subs map[string]model.Subscriber
}

func NewSubscriberRepo() *SubscriberRepo {
	return &SubscriberRepo{subs: make(map[string]model.Subscriber)}
}

func (r *SubscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	if s == nil || s.Email == "" {
		return domain.ErrInvalidArgument
	}
	key := strings.ToLower(strings.TrimSpace(s.Email))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[key]; ok {
		return domain.ErrAlreadySubscribed
	}
	cp := *s
	cp.Email = key
	r.subs[key] = cp
	return nil
}

func (r *SubscriberRepo) ExistsByEmail(ctx context.Context, tx repository.Tx, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[strings.ToLower(strings.TrimSpace(email))]
	return ok, nil
}

func (r *SubscriberRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Subscriber, error) {
	r.mu.RLock()
	out := make([]*model.Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		cp := s
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscribedAt.Equal(out[j].SubscribedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].SubscribedAt.Before(out[j].SubscribedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
