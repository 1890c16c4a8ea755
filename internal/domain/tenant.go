package domain

import "time"

type SubscriptionState string

const (
	SubscriptionTrialing SubscriptionState = "trialing"
	SubscriptionActive   SubscriptionState = "active"
	SubscriptionPastDue  SubscriptionState = "past_due"
	SubscriptionCanceled SubscriptionState = "canceled"
)

// PlanLimits is the (limit, price) tuple copied onto a tenant at
// subscription time — the source of truth for quota checks. Plans are
// effectively immutable once referenced by a tenant.
type PlanLimits struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	MaxRepos           int    `json:"maxRepos"`
	MaxAuthors         int    `json:"maxAuthors"`
	MaxEmailsPerMonth  int    `json:"maxEmailsPerMonth"`
}

// Usage is a tenant's consumption against its PlanLimits for the current
// billing period.
type Usage struct {
	ReposCount           int       `json:"reposCount"`
	AuthorsCount         int       `json:"authorsCount"`
	EmailsSentThisMonth  int       `json:"emailsSentThisMonth"`
	UsagePeriodStart     time.Time `json:"usagePeriodStart"`
}

type Tenant struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"displayName"`
	OwnerID      string            `json:"ownerId"`
	Subscription SubscriptionState `json:"subscription"`
	Plan         PlanLimits        `json:"plan"`
	Usage        Usage             `json:"usage"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// QuotaKind identifies which usage counter a quota check applies to.
type QuotaKind string

const (
	QuotaRepo   QuotaKind = "repo"
	QuotaAuthor QuotaKind = "author"
	QuotaEmail  QuotaKind = "email"
)

// Limit returns the plan limit for kind.
func (t *Tenant) Limit(kind QuotaKind) int {
	switch kind {
	case QuotaRepo:
		return t.Plan.MaxRepos
	case QuotaAuthor:
		return t.Plan.MaxAuthors
	case QuotaEmail:
		return t.Plan.MaxEmailsPerMonth
	default:
		return 0
	}
}

// Consumed returns the current usage counter for kind.
func (t *Tenant) Consumed(kind QuotaKind) int {
	switch kind {
	case QuotaRepo:
		return t.Usage.ReposCount
	case QuotaAuthor:
		return t.Usage.AuthorsCount
	case QuotaEmail:
		return t.Usage.EmailsSentThisMonth
	default:
		return 0
	}
}
