package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/barberia/backoffice/internal/audit"
	"github.com/barberia/backoffice/internal/audit/audittest"
	"github.com/barberia/backoffice/internal/shared"
)

type memoryRepo struct {
	services map[int64]Service
	inUse    map[int64]bool
	nextID   int64
	log      *audittest.Log
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{services: map[int64]Service{}, inUse: map[int64]bool{}, log: &audittest.Log{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Service, len(r.services))
	for k, v := range r.services {
		snapshot[k] = v
	}
	logLen := r.log.Len()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.services = snapshot
		r.log.Truncate(logLen)
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Service, error) {
	s, ok := r.services[id]
	if !ok {
		return Service{}, fmt.Errorf("service %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (r *memoryRepo) List(_ context.Context, f Filter) ([]Service, int, error) {
	var out []Service
	for _, s := range r.services {
		if f.Active != nil && s.Active != *f.Active {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (tx *memoryTx) Audit() audit.Appender { return tx.repo.log }

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Service, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) Insert(_ context.Context, s Service) (int64, error) {
	for _, existing := range tx.repo.services {
		if existing.Name == s.Name {
			return 0, fmt.Errorf("%w: uni_service_name", shared.ErrConflict)
		}
	}
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.services[s.ID] = s
	return s.ID, nil
}

func (tx *memoryTx) Update(_ context.Context, s Service) error {
	tx.repo.services[s.ID] = s
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, id int64) error {
	if tx.repo.inUse[id] {
		return fmt.Errorf("%w: appointment_lines_service_id_fkey", shared.ErrInUse)
	}
	delete(tx.repo.services, id)
	return nil
}

func haircut() ServiceInput {
	return ServiceInput{Name: "Corte clásico", Category: "hair", DurationMinutes: 30, Price: decimal.RequireFromString("20.00")}
}

func TestCreateService(t *testing.T) {
	repo := newMemoryRepo()
	m := NewManager(repo, nil)

	s, err := m.Create(context.Background(), haircut())
	require.NoError(t, err)
	require.Equal(t, int64(1), s.ID)
	require.True(t, s.Active)
	require.Len(t, repo.log.Filter(audit.TableServices), 1)

	_, err = m.Create(context.Background(), haircut())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 1, repo.log.Len())
}

func TestCreateServiceValidation(t *testing.T) {
	m := NewManager(newMemoryRepo(), nil)
	cases := map[string]func(*ServiceInput){
		"zero duration":  func(in *ServiceInput) { in.DurationMinutes = 0 },
		"negative price": func(in *ServiceInput) { in.Price = decimal.RequireFromString("-5") },
		"no name":        func(in *ServiceInput) { in.Name = "  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := haircut()
			mutate(&in)
			_, err := m.Create(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestSetActiveSkipsUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	m := NewManager(repo, nil)
	ctx := context.Background()
	a, _ := m.Create(ctx, haircut())
	in := haircut()
	in.Name = "Afeitado"
	b, _ := m.Create(ctx, in)

	n, err := m.SetActive(ctx, []int64{a.ID, b.ID}, false)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = m.SetActive(ctx, []int64{a.ID}, false)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = m.SetActive(ctx, []int64{a.ID, 99}, true)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, repo.services[a.ID].Active)
}

func TestDeleteReferencedService(t *testing.T) {
	repo := newMemoryRepo()
	m := NewManager(repo, nil)
	s, _ := m.Create(context.Background(), haircut())
	repo.inUse[s.ID] = true

	err := m.Delete(context.Background(), s.ID)
	require.ErrorIs(t, err, shared.ErrInUse)
	require.Contains(t, repo.services, s.ID)
}

func TestHandlerRoutes(t *testing.T) {
	repo := newMemoryRepo()
	r := chi.NewRouter()
	NewHandler(nil, NewManager(repo, nil)).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services",
		strings.NewReader(`{"name":"Barba","category":"beard","duration_minutes":15,"price":"15.00"}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services/actions/active", strings.NewReader(`{"ids":[1],"active":false}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"updated":1}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/services/actions/active", strings.NewReader(`{"ids":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
