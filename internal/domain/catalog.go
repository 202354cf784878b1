package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category groups projects on a portfolio. Owned by one identity.
type Category struct {
	ID          uuid.UUID
	OwnerEmail  string
	Name        string
	Description string
	Icon        string
	Position    int
	CreatedAt   time.Time
}

// Project is one portfolio entry within a category.
type Project struct {
	ID          uuid.UUID
	OwnerEmail  string
	CategoryID  uuid.UUID
	Title       string
	Description string
	ImageURL    string
	LiveURL     string
	RepoURL     string
	CreatedAt   time.Time
}

// CreateCategoryParams contains the validated parameters for a new category.
type CreateCategoryParams struct {
	Name        string
	Description string
	Icon        string
	Position    int
}

// CreateProjectParams contains the validated parameters for a new project.
type CreateProjectParams struct {
	CategoryID  uuid.UUID
	Title       string
	Description string
	ImageURL    string
	LiveURL     string
	RepoURL     string
}
