package domain

import "time"

type RepositoryStatus string

const (
	RepoActive     RepositoryStatus = "active"
	RepoRevoked    RepositoryStatus = "revoked"
	RepoTokenError RepositoryStatus = "token_error"
	RepoPaused     RepositoryStatus = "paused"
	RepoRemoved    RepositoryStatus = "removed"
)

// Repository is a (tenant, owner, name) triple with an encrypted access
// credential used by the fetch stage. (tenant, fullName) is unique.
type Repository struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	Owner     string           `json:"owner"`
	Name      string           `json:"name"`
	Status    RepositoryStatus `json:"status"`
	// CredentialCiphertext is the AES-GCM envelope produced by internal/crypto.
	// Empty when the repository has no per-repo credential (fetch falls
	// back to a process-global token).
	CredentialCiphertext string    `json:"-"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}
