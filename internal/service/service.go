// Package service implements the agent engine: two-phase response generation,
// action execution, conversation lifecycle and reply delivery.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alexiscuevases/ondesk/internal/adapter/llm"
	"github.com/alexiscuevases/ondesk/internal/adapter/lock"
	"github.com/alexiscuevases/ondesk/internal/config"
	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/executor"
	"github.com/alexiscuevases/ondesk/internal/policy"
	"github.com/alexiscuevases/ondesk/internal/repository"
)

// DefaultChannel is the Channels key used when a conversation's channel has
// no dedicated deliverer.
const DefaultChannel = "*"

// Deliverer sends a stored agent message to the customer.
type Deliverer interface {
	Deliver(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error
}

// Channels maps a conversation channel name to its deliverer.
type Channels map[string]Deliverer

func (c Channels) lookup(channel string) Deliverer {
	if d, ok := c[channel]; ok {
		return d
	}
	return c[DefaultChannel]
}

// PolicyEvaluator decides whether an action may run.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in policy.Input) (policy.Decision, error)
}

// Service holds the engine's collaborators. All of them are injected.
type Service struct {
	store     store.Store
	completer llm.Completer
	executor  *executor.Executor
	policy    PolicyEvaluator
	locker    lock.Locker
	channels  Channels
	config    *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a service. policyEngine and locker may be nil: every action is
// then allowed and locking is process-local.
func New(store store.Store, completer llm.Completer, exec *executor.Executor, policyEngine PolicyEvaluator, locker lock.Locker, channels Channels, cfg *config.Config, logger *slog.Logger) *Service {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if channels == nil {
		channels = Channels{}
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		store:     store,
		completer: completer,
		executor:  exec,
		policy:    policyEngine,
		locker:    locker,
		channels:  channels,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) historyLimit() int {
	if s.config.HistoryLimit > 0 {
		return s.config.HistoryLimit
	}
	return 20
}
