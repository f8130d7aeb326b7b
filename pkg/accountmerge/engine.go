// Package accountmerge folds a duplicate (source) account into a surviving (target) account.
package accountmerge

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

const DefaultTransactionTimeout = 60 * time.Second

type Config struct {
	// TransactionTimeout bounds the whole merge transaction
	TransactionTimeout time.Duration
	// Kinds overrides the relation catalogue; nil means models.RelationKinds
	Kinds []models.RelationKind
}

// Engine previews and executes account merges
type Engine struct {
	accounts  AccountStore
	relations RelationStore
	logger    ectologger.Logger
	timeout   time.Duration
	kinds     []models.RelationKind
}

func NewEngine(accounts AccountStore, relations RelationStore, logger ectologger.Logger, cfg Config) *Engine {
	timeout := cfg.TransactionTimeout
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	kinds := cfg.Kinds
	if kinds == nil {
		kinds = models.RelationKinds
	}
	return &Engine{
		accounts:  accounts,
		relations: relations,
		logger:    logger,
		timeout:   timeout,
		kinds:     kinds,
	}
}

// loadPair validates the requested pair and loads both accounts outside any transaction
func (e *Engine) loadPair(ctx context.Context, targetID, sourceID string) (*models.Account, *models.Account, error) {
	if targetID == sourceID {
		return nil, nil, newMergeError(ErrSameUser, "")
	}

	target, err := e.accounts.GetAccount(ctx, targetID)
	if err != nil {
		return nil, nil, classifyError(err)
	}
	if target == nil {
		return nil, nil, newMergeError(ErrTargetNotFound, "")
	}

	source, err := e.accounts.GetAccount(ctx, sourceID)
	if err != nil {
		return nil, nil, classifyError(err)
	}
	if source == nil {
		return nil, nil, newMergeError(ErrSourceNotFound, "")
	}

	return target, source, nil
}

func (e *Engine) kindsFor(strategy models.MergeStrategyType) []models.RelationKind {
	return models.RelationKindsByStrategy(e.kinds, strategy)
}

func resultCode(err error) string {
	if err == nil {
		return "OK"
	}
	return string(ErrorCodeOf(err))
}
