package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/collaborators"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/eventbus"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
	"github.com/iota-uz/provisioning-sdk/pkg/safemap"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

var ErrSessionNotFound = serrors.NewError("SESSION_NOT_FOUND", "rule builder session not found", "Provisioning.Errors.SessionNotFound")

// Sources bundles the remote collaborators shared by every session.
type Sources struct {
	Lookups             collaborators.LookupSource
	PermissionSets      collaborators.PermissionSetSource
	PermissionSetGroups collaborators.PermissionSetGroupSource
	Saver               collaborators.RuleSaver
}

type Session struct {
	ID            uuid.UUID
	Builder       *RuleBuilder
	Notifications *notify.Queue
	CreatedAt     time.Time

	lastSeen    atomic.Int64
	cancelLoads context.CancelFunc
	unsubscribe func()
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	s.cancelLoads()
	s.unsubscribe()
}

// RuleBuilderService keeps one RuleBuilder per authoring session in memory.
type RuleBuilderService struct {
	sources       Sources
	groupsEnabled bool
	ttl           time.Duration
	sessions      *safemap.SafeMap[uuid.UUID, *Session]
	publisher     eventbus.EventBus
	now           func() time.Time
}

func NewRuleBuilderService(sources Sources, groupsEnabled bool, ttl time.Duration, publisher eventbus.EventBus) *RuleBuilderService {
	return &RuleBuilderService{
		sources:       sources,
		groupsEnabled: groupsEnabled && sources.PermissionSetGroups != nil,
		ttl:           ttl,
		sessions:      safemap.New[uuid.UUID, *Session](),
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *RuleBuilderService) GroupsEnabled() bool {
	return s.groupsEnabled
}

// Create starts a session and kicks off its catalog loads. The loads outlive
// the request that created the session.
func (s *RuleBuilderService) Create(ctx context.Context) *Session {
	id := uuid.New()
	log := composables.UseLogger(ctx).WithField("session_id", id.String())
	bus := eventbus.NewEventPublisher(log.Logger)
	queue := notify.NewQueue(0)

	var groups collaborators.PermissionSetGroupSource
	if s.groupsEnabled {
		groups = s.sources.PermissionSetGroups
	}
	builder := NewRuleBuilder(RuleBuilderConfig{
		Lookups:             s.sources.Lookups,
		PermissionSets:      s.sources.PermissionSets,
		PermissionSetGroups: groups,
		Saver:               s.sources.Saver,
		Notifier:            notify.Multi(notify.NewLogNotifier(log), queue, notify.NewBusNotifier(bus)),
		Events:              bus,
		Logger:              log,
	})

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	now := s.now()
	sess := &Session{
		ID:            id,
		Builder:       builder,
		Notifications: queue,
		CreatedAt:     now,
		cancelLoads:   cancel,
		unsubscribe: bus.Subscribe(func(e *RuleSaved) {
			s.publisher.Publish(e)
		}),
	}
	sess.touch(now)
	s.sessions.Set(id, sess)
	activeSessions.Set(float64(s.sessions.Len()))

	builder.Init(loadCtx)
	log.WithField("groups_enabled", s.groupsEnabled).Debug("rule builder session created")
	return sess
}

func (s *RuleBuilderService) Get(id uuid.UUID) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

func (s *RuleBuilderService) Delete(id uuid.UUID) error {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.sessions.Delete(id)
	sess.close()
	activeSessions.Set(float64(s.sessions.Len()))
	return nil
}

// Sweep drops sessions idle for longer than the configured TTL and returns
// how many were removed.
func (s *RuleBuilderService) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	expired := s.sessions.DeleteFunc(func(_ uuid.UUID, sess *Session) bool {
		return now.Sub(sess.LastSeen()) > s.ttl
	})
	for _, sess := range expired {
		sess.close()
	}
	activeSessions.Set(float64(s.sessions.Len()))
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *RuleBuilderService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				composables.UseLogger(ctx).WithFields(logrus.Fields{"expired": n}).Info("expired rule builder sessions")
			}
		}
	}
}
