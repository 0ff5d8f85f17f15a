package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

// ErrNoSessionsFound is returned by ResumeMostRecent when the store is empty.
var ErrNoSessionsFound = errors.New("session: no sessions found")

// AmbiguousPrefixError is returned by ResumeByPrefix when more than one
// session id matches the given prefix.
type AmbiguousPrefixError struct {
	Prefix string
	Count  int
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("session: prefix %q matches %d sessions", e.Prefix, e.Count)
}

// resumableStates are the only states resume(id) will accept.
var resumableStates = map[models.SessionState]bool{
	models.StateActive:    true,
	models.StateSuspended: true,
	models.StateSleeping:  true,
}

// Recovery implements §4.F's resume/validate/archive operations on top of a
// Store. nowFunc is overridable for deterministic tests, mirroring the
// teacher's SessionExpiry{nowFunc} pattern for archive_old_sessions's
// 24-hour-boundary logic.
type Recovery struct {
	store   *Store
	nowFunc func() time.Time
}

// NewRecovery wraps store with the recovery operations.
func NewRecovery(store *Store) *Recovery {
	return &Recovery{store: store, nowFunc: time.Now}
}

// SetNowFunc overrides the clock used by archive_old_sessions, for tests.
func (r *Recovery) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	r.nowFunc = fn
}

// Resume performs an exact-id lookup; fails if the session's state is not
// resumable.
func (r *Recovery) Resume(ctx context.Context, id string) (*models.Session, error) {
	meta, err := r.store.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resumableStates[meta.State] {
		return nil, fmt.Errorf("session: %s is in state %q, not resumable", id, meta.State)
	}
	return r.store.Get(ctx, id)
}

// ResumeByPrefix resolves a session id prefix: zero matches is
// ErrSessionNotFound, exactly one resumes it, two or more is
// AmbiguousPrefixError.
func (r *Recovery) ResumeByPrefix(ctx context.Context, prefix string) (*models.Session, error) {
	matches, err := r.store.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, ErrSessionNotFound
	case 1:
		return r.Resume(ctx, matches[0].ID)
	default:
		return nil, &AmbiguousPrefixError{Prefix: prefix, Count: len(matches)}
	}
}

// ResumeMostRecent resumes the session with the highest last_active_at.
func (r *Recovery) ResumeMostRecent(ctx context.Context) (*models.Session, error) {
	meta, err := r.store.GetMostRecent(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNoSessionsFound
		}
		return nil, err
	}
	return r.Resume(ctx, meta.ID)
}

// SmartResume tries an exact id match first, then a prefix match; a nil/empty
// arg resumes the most recent session.
func (r *Recovery) SmartResume(ctx context.Context, arg string) (*models.Session, error) {
	if arg == "" {
		return r.ResumeMostRecent(ctx)
	}
	if _, err := r.store.GetMetadata(ctx, arg); err == nil {
		// An exact match exists; resolve it fully (including any
		// not-resumable-state error) rather than falling through to a
		// prefix search that could mask it.
		return r.Resume(ctx, arg)
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return r.ResumeByPrefix(ctx, arg)
}

// FindForDirectory returns every session whose working_directory matches
// path, most recently active first.
func (r *Recovery) FindForDirectory(ctx context.Context, path string) ([]*models.SessionMetadata, error) {
	return r.store.List(ctx, SessionQuery{WorkingDirectory: path, Limit: 1000})
}

// GetMostRecentForDirectory returns the most recently active session for a
// working directory, or ErrSessionNotFound.
func (r *Recovery) GetMostRecentForDirectory(ctx context.Context, path string) (*models.SessionMetadata, error) {
	matches, err := r.store.List(ctx, SessionQuery{WorkingDirectory: path, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrSessionNotFound
	}
	return matches[0], nil
}

// IssueSeverity classifies a ValidationResult issue.
type IssueSeverity string

const (
	SeverityInfo    IssueSeverity = "info"
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// ValidationIssue is one finding from Validate.
type ValidationIssue struct {
	Severity    IssueSeverity
	Description string
}

// ValidationResult is Validate's outcome.
type ValidationResult struct {
	IsValid bool
	Issues  []ValidationIssue
}

// ValidateOptions configures Validate.
type ValidateOptions struct {
	// AllowedStates, if non-empty, requires the session's state to be a
	// member; absence of a match is an Error issue.
	AllowedStates []models.SessionState

	// ValidateMessages additionally requires every message to have a
	// non-empty id (§4.F check (e)).
	ValidateMessages bool
}

// Validate runs the §4.F consistency checks against a session.
func (r *Recovery) Validate(ctx context.Context, id string, opts ValidateOptions) (ValidationResult, error) {
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{IsValid: true}
	addIssue := func(sev IssueSeverity, desc string) {
		result.Issues = append(result.Issues, ValidationIssue{Severity: sev, Description: desc})
		if sev == SeverityError {
			result.IsValid = false
		}
	}

	if len(opts.AllowedStates) > 0 {
		allowed := false
		for _, st := range opts.AllowedStates {
			if sess.Metadata.State == st {
				allowed = true
				break
			}
		}
		if !allowed {
			addIssue(SeverityError, fmt.Sprintf("session state %q is not in the allowed set", sess.Metadata.State))
		}
	}

	if sess.Metadata.Metrics.TurnCount != len(sess.Messages) {
		addIssue(SeverityWarning, fmt.Sprintf(
			"stored turn_count %d does not match actual message count %d",
			sess.Metadata.Metrics.TurnCount, len(sess.Messages),
		))
	}

	if sess.CompactBoundary > len(sess.Messages) {
		addIssue(SeverityError, fmt.Sprintf(
			"compact_boundary %d exceeds message count %d", sess.CompactBoundary, len(sess.Messages),
		))
	}

	if sess.Summary != nil && sess.CompactBoundary == 0 {
		addIssue(SeverityWarning, "summary is present but compact_boundary is 0")
	}

	if opts.ValidateMessages {
		for i, msg := range sess.Messages {
			if msg.ID == "" {
				addIssue(SeverityError, fmt.Sprintf("message at index %d has an empty id", i))
			}
		}
	}

	return result, nil
}

// ArchiveOldSessions transitions every non-Archived session whose
// last_active_at is older than the cutoff to Archived, and returns the ids
// affected.
func (r *Recovery) ArchiveOldSessions(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := r.nowFunc().Add(-olderThan)

	var affected []string
	offset := 0
	for {
		batch, err := r.store.List(ctx, SessionQuery{Limit: 200, Offset: offset})
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, meta := range batch {
			if meta.State == models.StateArchived {
				continue
			}
			if meta.LastActiveAt.Before(cutoff) {
				if err := r.store.SetState(ctx, meta.ID, models.StateArchived); err != nil {
					return affected, err
				}
				affected = append(affected, meta.ID)
			}
		}
		offset += len(batch)
	}
	return affected, nil
}
