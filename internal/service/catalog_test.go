package service

import (
	"sync"
	"testing"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture() (*memStore, *CatalogService) {
	store := newMemStore()
	svc := NewCatalogService(store, store, NewQuotaEnforcer(store, newTestLogger()), NewIdentityLocker(), newTestLogger())
	return store, svc
}

func TestCreateCategory_DeniedAtQuota(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierFree)
	store.categories["ana@example.com"] = 3

	_, err := svc.CreateCategory(t.Context(), "ana@example.com", domain.CreateCategoryParams{Name: "Web"})

	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Equal(t, "You have reached the maximum number of categories (3) for your subscription tier.", domain.ErrorMessage(err))
}

func TestCreateCategory_UsesStoredTier(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierPaid)
	store.categories["ana@example.com"] = 3

	category, err := svc.CreateCategory(t.Context(), "ana@example.com", domain.CreateCategoryParams{Name: " Web "})
	require.NoError(t, err)
	assert.Equal(t, "Web", category.Name)
	assert.Equal(t, DefaultCategoryIcon, category.Icon)
}

func TestCreateCategory_ConcurrentRequestsRespectQuota(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierFree)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CreateCategory(t.Context(), "ana@example.com", domain.CreateCategoryParams{Name: "Web"})
		}()
	}
	wg.Wait()

	count, err := store.CountCategories(t.Context(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCreateCategory_Validation(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierFree)

	_, err := svc.CreateCategory(t.Context(), "ana@example.com", domain.CreateCategoryParams{Name: "   "})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCreateCategory_UnknownAccount(t *testing.T) {
	_, svc := newCatalogFixture()

	_, err := svc.CreateCategory(t.Context(), "ghost@example.com", domain.CreateCategoryParams{Name: "Web"})
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateProject(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierFree)
	category := uuid.New()
	store.projects["ana@example.com"] = map[uuid.UUID]int64{category: 2}

	params := domain.CreateProjectParams{CategoryID: category, Title: "Site", Description: "A site"}

	project, err := svc.CreateProject(t.Context(), "ana@example.com", params)
	require.NoError(t, err)
	assert.Equal(t, category, project.CategoryID)

	_, err = svc.CreateProject(t.Context(), "ana@example.com", params)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "maximum number of projects (3)")
}

func TestCreateProject_Validation(t *testing.T) {
	store, svc := newCatalogFixture()
	store.seed("ana@example.com", domain.TierFree)

	_, err := svc.CreateProject(t.Context(), "ana@example.com", domain.CreateProjectParams{CategoryID: uuid.New(), Title: "Site"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
