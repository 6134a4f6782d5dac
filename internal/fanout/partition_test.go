package fanout

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesOf(pages ...[]uint64) func(func([]uint64, error) bool) {
	return func(yield func([]uint64, error) bool) {
		for _, p := range pages {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func seq(from, to uint64) []uint64 {
	out := make([]uint64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func collect(t *testing.T, units func(func(DispatchUnit, error) bool)) []DispatchUnit {
	t.Helper()
	var out []DispatchUnit
	for u, err := range units {
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func TestPartition_SizesAndCoverage(t *testing.T) {
	cases := []struct {
		name  string
		pages [][]uint64
		unit  int
		sizes []int
	}{
		{"250 by 100", [][]uint64{seq(1, 250)}, 100, []int{100, 100, 50}},
		{"pages not aligned to unit", [][]uint64{seq(1, 7), seq(8, 14), seq(15, 16)}, 3, []int{3, 3, 3, 3, 3, 1}},
		{"exact multiple", [][]uint64{seq(1, 4), seq(5, 8)}, 4, []int{4, 4}},
		{"default unit size", [][]uint64{seq(1, 150)}, 0, []int{100, 50}},
		{"no followers", nil, 100, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			units := collect(t, Partition(7, pagesOf(tc.pages...), tc.unit))

			var sizes []int
			var union []uint64
			for _, u := range units {
				assert.Equal(t, uint64(7), u.PostID)
				sizes = append(sizes, len(u.FollowerIDs))
				union = append(union, u.FollowerIDs...)
			}
			assert.Equal(t, tc.sizes, sizes)
			assert.Equal(t, slices.Concat(tc.pages...), union)
		})
	}
}

func TestPartition_UnitsDoNotAliasPages(t *testing.T) {
	page := seq(1, 4)
	units := collect(t, Partition(1, pagesOf(page), 2))
	page[0] = 99
	assert.Equal(t, []uint64{1, 2}, units[0].FollowerIDs)
}

func TestPartition_ErrorEndsSequence(t *testing.T) {
	pages := func(yield func([]uint64, error) bool) {
		if !yield(seq(1, 3), nil) {
			return
		}
		yield(nil, errBoom)
	}
	var got []DispatchUnit
	var gotErr error
	for u, err := range Partition(1, pages, 2) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, u)
	}
	assert.ErrorIs(t, gotErr, errBoom)
	require.Len(t, got, 1)
	assert.Equal(t, []uint64{1, 2}, got[0].FollowerIDs)
}

func TestPartition_StopsWhenConsumerBreaks(t *testing.T) {
	pulled := 0
	pages := func(yield func([]uint64, error) bool) {
		for i := uint64(0); i < 100; i++ {
			pulled++
			if !yield(seq(i*10+1, i*10+10), nil) {
				return
			}
		}
	}
	for range Partition(1, pages, 10) {
		break
	}
	assert.Equal(t, 1, pulled)
}
