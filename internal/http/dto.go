package http

import (
	"time"

	"account-graph/internal/domain"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,max=72"`
}

type updateAccountRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Name     *string `json:"name" binding:"omitempty,min=1"`
	Password *string `json:"password" binding:"omitempty,min=1,max=72"`
}

func (r updateAccountRequest) patch() domain.AccountPatch {
	return domain.AccountPatch{
		Email:    r.Email,
		Name:     r.Name,
		Password: r.Password,
	}
}

// AccountResponse is the public shape of an account. Hidden fields appear
// only when the read projected them.
type AccountResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Following    *[]string `json:"following,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

// FollowingResponse is an account whose following ids are resolved to accounts.
type FollowingResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Following []AccountResponse `json:"following"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type PatchResponse struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

func accountToResponse(a domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		PasswordHash: a.PasswordHash,
		CreatedAt:    formatTime(a.CreatedAt),
		UpdatedAt:    formatTime(a.UpdatedAt),
	}
	if a.Following != nil {
		following := a.Following
		resp.Following = &following
	}
	return resp
}

func accountsToResponse(accounts []domain.Account) []AccountResponse {
	resp := make([]AccountResponse, len(accounts))
	for i := range accounts {
		resp[i] = accountToResponse(accounts[i])
	}
	return resp
}

func followingToResponse(subject domain.Account, following []domain.Account) FollowingResponse {
	return FollowingResponse{
		ID:        subject.ID,
		Email:     subject.Email,
		Name:      subject.Name,
		Following: accountsToResponse(following),
		CreatedAt: formatTime(subject.CreatedAt),
		UpdatedAt: formatTime(subject.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
