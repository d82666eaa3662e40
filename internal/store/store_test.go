package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, c model.CompanyData) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockStore) Find(ctx context.Context, key model.LeadKey) (*model.CompanyData, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyData), args.Error(1)
}

func (m *mockStore) Exists(ctx context.Context, key model.LeadKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, filter LeadFilter) ([]model.CompanyData, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CompanyData), args.Error(1)
}

func (m *mockStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunResult), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunResult), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func fastPolicy() resilience.Policy {
	return resilience.Policy{MaxAttempts: 3}
}

func TestWithRetry_InsertRecoversFromBusy(t *testing.T) {
	ms := new(mockStore)
	lead := testLead("acme", "Córdoba")
	ms.On("Insert", mock.Anything, lead).Return(errors.New("database is locked")).Twice()
	ms.On("Insert", mock.Anything, lead).Return(nil).Once()

	s := WithRetry(ms, fastPolicy())
	require.NoError(t, s.Insert(context.Background(), lead))
	ms.AssertNumberOfCalls(t, "Insert", 3)
}

func TestWithRetry_InsertExhausted(t *testing.T) {
	ms := new(mockStore)
	lead := testLead("acme", "Córdoba")
	ms.On("Insert", mock.Anything, lead).Return(errors.New("database is locked"))

	s := WithRetry(ms, fastPolicy())
	err := s.Insert(context.Background(), lead)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrExhausted)
	assert.Equal(t, "database is locked", err.Error())
	ms.AssertNumberOfCalls(t, "Insert", 3)
}

func TestWithRetry_DuplicateNotRetried(t *testing.T) {
	ms := new(mockStore)
	lead := testLead("acme", "Córdoba")
	ms.On("Insert", mock.Anything, lead).Return(ErrDuplicateLead)

	s := WithRetry(ms, fastPolicy())
	err := s.Insert(context.Background(), lead)
	assert.ErrorIs(t, err, ErrDuplicateLead)
	assert.NotErrorIs(t, err, resilience.ErrExhausted)
	ms.AssertNumberOfCalls(t, "Insert", 1)
}

func TestWithRetry_FindAbsentIsNotAnError(t *testing.T) {
	ms := new(mockStore)
	key := model.LeadKey{CompanyName: "nope", Province: "Salta"}
	ms.On("Find", mock.Anything, key).Return(nil, nil)

	s := WithRetry(ms, fastPolicy())
	got, err := s.Find(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWithRetry_ExistsRetries(t *testing.T) {
	ms := new(mockStore)
	key := model.LeadKey{CompanyName: "acme", Province: "Córdoba"}
	ms.On("Exists", mock.Anything, key).Return(false, errors.New("i/o timeout")).Once()
	ms.On("Exists", mock.Anything, key).Return(true, nil).Once()

	s := WithRetry(ms, fastPolicy())
	ok, err := s.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithRetry_PassesThroughLifecycle(t *testing.T) {
	ms := new(mockStore)
	ms.On("Migrate", mock.Anything).Return(nil)
	ms.On("Close").Return(nil)

	s := WithRetry(ms, fastPolicy())
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())
	ms.AssertExpectations(t)
}
