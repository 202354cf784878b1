package handler

import (
	"time"

	"github.com/DukeRupert/folio/internal/domain"
)

// AccountResponse is the public view of an account. The credential hash is never included.
type AccountResponse struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Tier      domain.Tier   `json:"tier"`
	TierName  string        `json:"tier_name"`
	Role      domain.Role   `json:"role"`
	Quota     QuotaResponse `json:"quota"`
	CreatedAt time.Time     `json:"created_at"`
}

// QuotaResponse describes the ceilings of a tier. A nil limit is unbounded.
type QuotaResponse struct {
	MaxCategories          *int `json:"max_categories"`
	MaxProjectsPerCategory *int `json:"max_projects_per_category"`
	ExtendedAccess         bool `json:"extended_access"`
}

func newAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Email:     a.Email,
		Name:      a.DisplayName(),
		Tier:      a.Tier,
		TierName:  a.Tier.DisplayName(),
		Role:      a.Role,
		Quota:     newQuotaResponse(domain.QuotaFor(a.Tier)),
		CreatedAt: a.CreatedAt,
	}
}

func newQuotaResponse(q domain.TierQuota) QuotaResponse {
	resp := QuotaResponse{ExtendedAccess: q.HasExtendedAccess}
	if !q.UnlimitedCategories {
		n := q.MaxCategories
		resp.MaxCategories = &n
	}
	if !q.UnlimitedProjects {
		n := q.MaxProjectsPerCategory
		resp.MaxProjectsPerCategory = &n
	}
	return resp
}

// LoginResponse is returned by every sign-in route.
type LoginResponse struct {
	Token          string                    `json:"token"`
	Account        AccountResponse           `json:"account"`
	Reconciliation domain.VerificationResult `json:"reconciliation"`
}

func newLoginResponse(res *domain.LoginResult) LoginResponse {
	return LoginResponse{
		Token:          res.Token,
		Account:        newAccountResponse(res.Account),
		Reconciliation: res.Reconciliation,
	}
}

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

func newCategoryResponse(c *domain.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Position:    c.Position,
		CreatedAt:   c.CreatedAt,
	}
}

type projectResponse struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	LiveURL     string    `json:"live_url,omitempty"`
	RepoURL     string    `json:"repo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newProjectResponse(p *domain.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.String(),
		CategoryID:  p.CategoryID.String(),
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		LiveURL:     p.LiveURL,
		RepoURL:     p.RepoURL,
		CreatedAt:   p.CreatedAt,
	}
}
