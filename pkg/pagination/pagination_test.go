package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mercatolabs/mercato/pkg/encoder"
)

func newTestPaginator() *Paginator {
	return New(encoder.NewBase64Encoder(), 10, 100)
}

func TestCursorRoundTrip(t *testing.T) {
	p := newTestPaginator()
	fp := Fingerprint("products", "chairs")

	for _, offset := range []int{0, 1, 9, 24, 99, 1_000_000} {
		cursor := p.EncodeCursor(offset, fp)
		got, err := p.DecodeCursor(cursor, fp)
		require.NoError(t, err)
		require.Equal(t, offset, got)
	}
}

func TestDecodeGarbageCursor(t *testing.T) {
	p := newTestPaginator()

	for _, cursor := range []string{"garbage!!!", "bm90IGpzb24=", ""} {
		_, err := p.DecodeCursor(cursor, 0)
		require.ErrorIs(t, err, ErrInvalidCursor)
	}
}

func TestDecodeNegativeOffset(t *testing.T) {
	p := newTestPaginator()

	encoded, err := encoder.NewBase64Encoder().Encode([]byte(`{"v":1,"o":-5}`))
	require.NoError(t, err)

	_, err = p.DecodeCursor(encoded, 0)
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecodeWrongFingerprint(t *testing.T) {
	p := newTestPaginator()

	cursor := p.EncodeCursor(3, Fingerprint("products", "chairs"))
	_, err := p.DecodeCursor(cursor, Fingerprint("products", "tables"))
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestWindowClamping(t *testing.T) {
	p := newTestPaginator()

	tests := []struct {
		name      string
		first     *int
		wantLimit int
	}{
		{name: "default when absent", first: nil, wantLimit: 10},
		{name: "capped at maximum", first: intPtr(500), wantLimit: 100},
		{name: "raised to one", first: intPtr(0), wantLimit: 1},
		{name: "kept in range", first: intPtr(25), wantLimit: 25},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			offset, limit, err := p.Window(test.first, nil, 0)
			require.NoError(t, err)
			require.Zero(t, offset)
			require.Equal(t, test.wantLimit, limit)
		})
	}
}

func TestWindowAfterCursor(t *testing.T) {
	p := newTestPaginator()
	fp := Fingerprint("orders", "u1")

	// cursor names row 9, so the next window starts at row 10
	cursor := p.EncodeCursor(9, fp)
	offset, limit, err := p.Window(intPtr(10), &cursor, fp)
	require.NoError(t, err)
	require.Equal(t, 10, offset)
	require.Equal(t, 10, limit)

	_, _, err = p.Window(intPtr(10), strPtr("not-a-cursor"), fp)
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPaginateBoundaries(t *testing.T) {
	p := newTestPaginator()
	rows := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "row"
		}
		return out
	}

	t.Run("first page of 25", func(t *testing.T) {
		conn := Paginate(p, rows(10), 0, 10, 25, 0)
		require.Len(t, conn.Edges, 10)
		require.True(t, conn.PageInfo.HasNextPage)
		require.False(t, conn.PageInfo.HasPreviousPage)
		require.Equal(t, 25, conn.TotalCount)
	})

	t.Run("last short page of 25", func(t *testing.T) {
		conn := Paginate(p, rows(5), 20, 10, 25, 0)
		require.Len(t, conn.Edges, 5)
		require.False(t, conn.PageInfo.HasNextPage)
		require.True(t, conn.PageInfo.HasPreviousPage)
	})

	t.Run("empty result set", func(t *testing.T) {
		conn := Paginate(p, rows(0), 0, 10, 0, 0)
		require.Empty(t, conn.Edges)
		require.Nil(t, conn.PageInfo.StartCursor)
		require.Nil(t, conn.PageInfo.EndCursor)
		require.False(t, conn.PageInfo.HasNextPage)
		require.False(t, conn.PageInfo.HasPreviousPage)
	})

	t.Run("edge cursors decode to row offsets", func(t *testing.T) {
		fp := Fingerprint("products")
		conn := Paginate(p, rows(3), 20, 10, 25, fp)
		require.Len(t, conn.Edges, 3)

		first, err := p.DecodeCursor(*conn.PageInfo.StartCursor, fp)
		require.NoError(t, err)
		require.Equal(t, 20, first)

		last, err := p.DecodeCursor(*conn.PageInfo.EndCursor, fp)
		require.NoError(t, err)
		require.Equal(t, 22, last)
	})

	t.Run("rows beyond limit are dropped", func(t *testing.T) {
		conn := Paginate(p, rows(12), 0, 10, 25, 0)
		require.Len(t, conn.Edges, 10)
	})
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
