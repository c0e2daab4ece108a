package audit

import (
	"context"
	"time"
)

// Logger is the minimal logging interface the trail requires.
type Logger interface {
	Warn(msg string, args ...any)
}

// Trail records catalog mutations into a Repository without ever failing
// the caller. It satisfies the catalog engine's Auditor interface.
type Trail struct {
	repo    Repository
	source  string
	timeout time.Duration
	logger  Logger
}

// recordTimeout bounds a single audit insert so a locked database
// cannot stall a catalog mutation.
const recordTimeout = 2 * time.Second

// NewTrail creates a Trail writing to repo with the given source tag.
// A nil logger discards recording failures silently.
func NewTrail(repo Repository, source string, logger Logger) *Trail {
	return &Trail{
		repo:    repo,
		source:  source,
		timeout: recordTimeout,
		logger:  logger,
	}
}

// Record writes one audit entry. Failures are logged, never returned:
// the mutation already happened and must not be rolled back or failed
// because bookkeeping hiccupped.
func (t *Trail) Record(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	if t == nil || t.repo == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	entry := &AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     t.source,
		Details:    details,
	}

	if err := t.repo.Create(recordCtx, entry); err != nil && t.logger != nil {
		t.logger.Warn("audit record failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}
