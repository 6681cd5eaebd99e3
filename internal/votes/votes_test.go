package votes

import (
	"context"
	"errors"
	"testing"

	"github.com/ButyrinIA/feed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) TabulateVotes(ctx context.Context, target string) (*models.Votes, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(*models.Votes), args.Error(1)
}

func TestTabulate(t *testing.T) {
	src := &mockSource{}
	src.On("TabulateVotes", mock.Anything, "c1").Return(&models.Votes{
		Upvotes:   []string{"alice", "bob", "alice", "carol"},
		Downvotes: []string{"carol", "dave"},
	}, nil)

	tab := NewTabulator(src, zap.NewNop())
	v, err := tab.Tabulate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, v.Upvotes)
	assert.Equal(t, []string{"dave"}, v.Downvotes)
	assert.Equal(t, 1, v.Karma())
	assert.Equal(t, 1, UserVote(v, "alice"))
	assert.Equal(t, -1, UserVote(v, "dave"))
	assert.Equal(t, 0, UserVote(v, "carol"))
	src.AssertExpectations(t)
}

func TestTabulate_Error(t *testing.T) {
	src := &mockSource{}
	src.On("TabulateVotes", mock.Anything, "c1").Return((*models.Votes)(nil), errors.New("ошибка хранилища"))

	tab := NewTabulator(src, zap.NewNop())
	v, err := tab.Tabulate(context.Background(), "c1")
	assert.Nil(t, v)
	assert.EqualError(t, err, "failed to tabulate votes for c1: ошибка хранилища")

	zero := tab.TabulateOrZero(context.Background(), "c1")
	require.NotNil(t, zero)
	assert.Equal(t, 0, zero.Karma())
}

func TestTabulate_NilVotes(t *testing.T) {
	src := &mockSource{}
	src.On("TabulateVotes", mock.Anything, "c1").Return((*models.Votes)(nil), nil)

	v, err := NewTabulator(src, zap.NewNop()).Tabulate(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, 0, UserVote(v, "alice"))
}
