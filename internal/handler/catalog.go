package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
)

// CatalogCreator creates quota-gated portfolio content. Implemented by *service.CatalogService.
type CatalogCreator interface {
	CreateCategory(ctx context.Context, identity string, params domain.CreateCategoryParams) (*domain.Category, error)
	CreateProject(ctx context.Context, identity string, params domain.CreateProjectParams) (*domain.Project, error)
}

// CatalogHandler handles category and project creation.
//
// Routes handled:
// - POST /api/categories               -> CreateCategory
// - POST /api/categories/{id}/projects -> CreateProject
type CatalogHandler struct {
	catalog CatalogCreator
	logger  *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog CatalogCreator, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers all catalog routes with the provided mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, requireAccount func(http.Handler) http.Handler) {
	mux.Handle("POST /api/categories", requireAccount(http.HandlerFunc(h.CreateCategory)))
	mux.Handle("POST /api/categories/{id}/projects", requireAccount(http.HandlerFunc(h.CreateProject)))
}

type createCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=50"`
	Position    int    `json:"position" validate:"min=0"`
}

// CreateCategory creates a category if the account's tier admits another.
//
// Responses:
// - 201: the category
// - 400: validation failure
// - 402: category quota reached
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_category"

	account := auth.GetAccountFromRequest(r)
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createCategoryRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), account.Email, domain.CreateCategoryParams{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Position:    req.Position,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCategoryResponse(category))
}

type createProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url,max=2048"`
	LiveURL     string `json:"live_url" validate:"omitempty,url,max=2048"`
	RepoURL     string `json:"repo_url" validate:"omitempty,url,max=2048"`
}

// CreateProject adds a project to one of the account's categories if the
// category has room under the account's tier.
//
// Responses:
// - 201: the project
// - 400: validation failure
// - 402: project quota reached for the category
// - 404: category not found or owned by another account
func (h *CatalogHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_project"

	account := auth.GetAccountFromRequest(r)
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	categoryID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundResponse(w, r, h.logger)
		return
	}

	var req createProjectRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	project, err := h.catalog.CreateProject(r.Context(), account.Email, domain.CreateProjectParams{
		CategoryID:  categoryID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		LiveURL:     req.LiveURL,
		RepoURL:     req.RepoURL,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newProjectResponse(project))
}
