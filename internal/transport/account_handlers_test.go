package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/repository"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memProfiles struct {
	rows map[uuid.UUID]*domain.UserProfile
}

func (m *memProfiles) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	p, ok := m.rows[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfiles) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	m.rows[profile.UserID] = profile
	return nil
}

func profileRouter(actor *domain.Actor) (http.Handler, *memProfiles) {
	repo := &memProfiles{rows: map[uuid.UUID]*domain.UserProfile{}}
	r := chi.NewRouter()
	r.Route("/api/users", func(r chi.Router) {
		r.Use(withActor(actor))
		NewProfileHandler(service.NewProfileService(repo, "256"), zap.NewNop()).Routes(r)
	})
	return r, repo
}

func TestProfileGetCreatesEmptyProfile(t *testing.T) {
	actor := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	h, repo := profileRouter(actor)

	w := doJSON(t, h, http.MethodGet, "/api/users/profile", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, repo.rows, actor.ID)

	var profile domain.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, actor.ID, profile.UserID)
	assert.Empty(t, profile.Phone)
}

func TestProfileUpdateNormalizesPhone(t *testing.T) {
	actor := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	h, _ := profileRouter(actor)

	w := doJSON(t, h, http.MethodPut, "/api/users/profile",
		ProfileRequest{Position: "Buyer", Department: "Purchasing", Phone: "0772 123 456"})

	require.Equal(t, http.StatusOK, w.Code)
	var profile domain.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "+256772123456", profile.Phone)
	assert.Equal(t, "Buyer", profile.Position)
}

func TestProfileUpdateRejectsLongPosition(t *testing.T) {
	actor := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	h, _ := profileRouter(actor)

	long := make([]byte, 61)
	for i := range long {
		long[i] = 'a'
	}
	w := doJSON(t, h, http.MethodPut, "/api/users/profile", ProfileRequest{Position: string(long)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "position", decodeError(t, w).Details["field"])
}

func TestProfileRequiresActor(t *testing.T) {
	h, _ := profileRouter(nil)

	w := doJSON(t, h, http.MethodGet, "/api/users/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func seedUser(t *testing.T, repo *mockUserRepository, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		ID:        uuid.New(),
		Email:     uuid.NewString()[:8] + "@example.com",
		FirstName: "Ada",
		LastName:  "Byron",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func adminRouter(t *testing.T, actor *domain.Actor, products service.ProductService) (http.Handler, *mockUserRepository) {
	t.Helper()
	users := newMockUserRepository()
	userService := service.NewUserService(users, newMockRefreshTokenRepository(), testJWTConfig)
	r := chi.NewRouter()
	NewAdminHandler(products, userService, zap.NewNop()).RegisterRoutes(r, withActor(actor))
	return r, users
}

func TestAdminSetRole(t *testing.T) {
	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	h, users := adminRouter(t, admin, &stubProductService{})
	target := seedUser(t, users, domain.RoleUser)

	w := doJSON(t, h, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role", RoleRequest{Role: "staff"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.RoleStaff, resp.Role)
	assert.Equal(t, domain.RoleStaff, target.Role)
}

func TestAdminSetRoleRejectsUnknownRole(t *testing.T) {
	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	h, users := adminRouter(t, admin, &stubProductService{})
	target := seedUser(t, users, domain.RoleUser)

	w := doJSON(t, h, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role", RoleRequest{Role: "owner"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.RoleUser, target.Role)
}

func TestAdminSetRoleUnknownUser(t *testing.T) {
	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	h, _ := adminRouter(t, admin, &stubProductService{})

	w := doJSON(t, h, http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/role", RoleRequest{Role: "staff"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaffCannotSetRoles(t *testing.T) {
	staff := &domain.Actor{ID: uuid.New(), Role: domain.RoleStaff}
	h, users := adminRouter(t, staff, &stubProductService{})
	target := seedUser(t, users, domain.RoleUser)

	w := doJSON(t, h, http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role", RoleRequest{Role: "admin"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domain.RoleUser, target.Role)
}

func TestRecentChangesIsStaffOnly(t *testing.T) {
	products := &stubProductService{
		recent: func(limit int) ([]*domain.ChangeEntry, error) {
			return []*domain.ChangeEntry{{ID: "01J0000000000000000000000", ChangeType: domain.ChangeCreated}}, nil
		},
	}

	staff := &domain.Actor{ID: uuid.New(), Role: domain.RoleStaff}
	h, _ := adminRouter(t, staff, products)
	w := doJSON(t, h, http.MethodGet, "/api/admin/changes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Changes, 1)

	user := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	h, _ = adminRouter(t, user, products)
	w = doJSON(t, h, http.MethodGet, "/api/admin/changes", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMeReturnsAccount(t *testing.T) {
	users := newMockUserRepository()
	u := seedUser(t, users, domain.RoleStaff)
	userService := service.NewUserService(users, newMockRefreshTokenRepository(), testJWTConfig)

	r := chi.NewRouter()
	NewUserHandler(userService, zap.NewNop()).RegisterRoutes(r, withActor(&domain.Actor{ID: u.ID, Role: u.Role}))

	w := doJSON(t, r, http.MethodGet, "/api/users/me", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, u.Email, resp.Email)
	assert.Equal(t, domain.RoleStaff, resp.Role)
}
