package sources

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate_FollowsCursor(t *testing.T) {
	var cursors []string
	res, err := Paginate(context.Background(), 10, func(_ context.Context, cursor string) (Page[int], error) {
		cursors = append(cursors, cursor)
		n, _ := strconv.Atoi(cursor)
		if n == 2 {
			return Page[int]{Items: []int{n}}, nil
		}
		return Page[int]{Items: []int{n}, HasMore: true, Next: strconv.Itoa(n + 1)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "1", "2"}, cursors)
	assert.Equal(t, []int{0, 1, 2}, res.Items)
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.Truncated)
}

func TestPaginate_StopRules(t *testing.T) {
	tests := []struct {
		name string
		page Page[string]
	}{
		{"no more flag", Page[string]{Items: []string{"a"}, Next: "x"}},
		{"empty cursor", Page[string]{Items: []string{"a"}, HasMore: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			res, err := Paginate(context.Background(), 10, func(context.Context, string) (Page[string], error) {
				calls++
				return tt.page, nil
			})
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, []string{"a"}, res.Items)
		})
	}
}

func TestPaginate_RepeatingCursor(t *testing.T) {
	calls := 0
	res, err := Paginate(context.Background(), 10, func(context.Context, string) (Page[string], error) {
		calls++
		return Page[string]{Items: []string{"a"}, HasMore: true, Next: "same"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, res.Items, 2)
	assert.False(t, res.Truncated)
}

func TestPaginate_CursorCycle(t *testing.T) {
	next := map[string]string{"": "A", "A": "B", "B": "A"}
	var cursors []string
	res, err := Paginate(context.Background(), 10, func(_ context.Context, cursor string) (Page[string], error) {
		cursors = append(cursors, cursor)
		return Page[string]{Items: []string{cursor}, HasMore: true, Next: next[cursor]}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "A", "B"}, cursors)
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.Truncated)
}

func TestPaginate_CapIsNotAnError(t *testing.T) {
	res, err := Paginate(context.Background(), 3, func(_ context.Context, cursor string) (Page[string], error) {
		return Page[string]{Items: []string{cursor}, HasMore: true, Next: cursor + "x"}, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, []string{"", "x", "xx"}, res.Items)
}

func TestPaginate_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Paginate(context.Background(), 3, func(context.Context, string) (Page[string], error) {
		return Page[string]{}, boom
	})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Paginate(ctx, 3, func(context.Context, string) (Page[string], error) {
		return Page[string]{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
