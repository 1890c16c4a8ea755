package domain

import "errors"

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrRepositoryNotFound  = errors.New("repository not found")
	ErrDuplicateRepository = errors.New("repository already onboarded for this tenant")
	ErrAuthorNotFound      = errors.New("author not found")
	ErrEntryNotFound       = errors.New("monitoring entry not found")
	ErrDuplicateEntry      = errors.New("monitoring entry already exists for this author and repository")
	ErrRunNotFound         = errors.New("run not found")
	ErrRunAlreadyClosed    = errors.New("run is already closed")
	ErrInvalidSchedule     = errors.New("invalid schedule spec")

	// Pipeline error kinds. These classify why a run did not deliver; none
	// of them are fatal to the schedule itself — the tick always advances
	// nextRunAt regardless of which of these fired.
	ErrVCSAuth      = errors.New("vcs authentication failed")
	ErrVCSRate      = errors.New("vcs rate limit exhausted")
	ErrLLMFail      = errors.New("ai summary generation failed")
	ErrQuotaReached = errors.New("monthly email limit reached")
	ErrDeliveryFail = errors.New("delivery failed")
	ErrNoActivity   = errors.New("no activity")
	ErrNoRecipients = errors.New("no recipients configured")
)
