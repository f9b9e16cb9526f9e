// Package pagination implements opaque cursor paging over offset windows.
//
// A cursor encodes a zero-based row offset within a fixed sort order, plus a
// fingerprint of the filter/sort shape that produced it. Decoding a cursor
// under a different shape fails, so cursors cannot silently leak between
// incompatible result sets.
package pagination

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/mercatolabs/mercato/pkg/encoder"
)

const cursorVersion = 1

// ErrInvalidCursor is returned for cursors that do not decode to a valid
// position, or that were produced under a different filter/sort shape.
var ErrInvalidCursor = errors.New("invalid cursor")

type cursorPayload struct {
	Version     int    `json:"v"`
	Offset      int    `json:"o"`
	Fingerprint uint64 `json:"f,omitempty"`
}

// Fingerprint reduces a filter/sort shape to a stable hash that namespaces the
// cursors produced under it.
func Fingerprint(parts ...string) uint64 {
	h := xxhash.New()
	for _, part := range parts {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Paginator converts requested windows into clamped offsets and opaque
// cursors. It holds no per-request state and is safe for concurrent use.
type Paginator struct {
	enc             encoder.Encoder
	defaultPageSize int
	maxPageSize     int
}

func New(enc encoder.Encoder, defaultPageSize, maxPageSize int) *Paginator {
	return &Paginator{
		enc:             enc,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// DefaultPageSize returns the page size applied when the caller requests none.
func (p *Paginator) DefaultPageSize() int {
	return p.defaultPageSize
}

// Window resolves the requested (first, after) pair into a concrete offset and
// limit. A nil first falls back to the default page size; oversized limits are
// silently capped, undersized ones raised to one. The fingerprint must match
// the one embedded in the cursor.
func (p *Paginator) Window(first *int, after *string, fingerprint uint64) (offset, limit int, err error) {
	limit = p.defaultPageSize
	if first != nil {
		limit = *first
	}
	if limit < 1 {
		limit = 1
	}
	if limit > p.maxPageSize {
		limit = p.maxPageSize
	}

	if after != nil && *after != "" {
		offset, err = p.DecodeCursor(*after, fingerprint)
		if err != nil {
			return 0, 0, err
		}
		// the cursor names the last row of the previous page
		offset++
	}

	return offset, limit, nil
}

// EncodeCursor encodes the given row offset under the given shape fingerprint.
func (p *Paginator) EncodeCursor(offset int, fingerprint uint64) string {
	payload, err := json.Marshal(cursorPayload{
		Version:     cursorVersion,
		Offset:      offset,
		Fingerprint: fingerprint,
	})
	if err != nil {
		panic(fmt.Sprintf("marshal cursor payload: %v", err))
	}

	cursor, err := p.enc.Encode(payload)
	if err != nil {
		panic(fmt.Sprintf("encode cursor payload: %v", err))
	}
	return cursor
}

// DecodeCursor reverses EncodeCursor. Garbage input, negative offsets, version
// drift and fingerprint mismatches all yield ErrInvalidCursor.
func (p *Paginator) DecodeCursor(cursor string, fingerprint uint64) (int, error) {
	raw, err := p.enc.Decode(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}

	if payload.Version != cursorVersion || payload.Offset < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCursor, cursor)
	}
	if payload.Fingerprint != fingerprint {
		return 0, fmt.Errorf("%w: cursor was issued for a different filter/sort", ErrInvalidCursor)
	}

	return payload.Offset, nil
}

// PageInfo summarizes a page position in the Relay connection shape.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Edge pairs a node with the cursor naming its position.
type Edge[T any] struct {
	Node   T
	Cursor string
}

// Connection is one resolved page of a list field.
type Connection[T any] struct {
	Edges      []Edge[T]
	PageInfo   PageInfo
	TotalCount int
}

// Paginate assembles the connection envelope for one already-fetched window.
// rows must be the rows of the window itself, never the full result set.
func Paginate[T any](p *Paginator, rows []T, offset, limit, totalCount int, fingerprint uint64) Connection[T] {
	if len(rows) > limit {
		rows = rows[:limit]
	}

	conn := Connection[T]{
		Edges:      make([]Edge[T], 0, len(rows)),
		TotalCount: totalCount,
		PageInfo: PageInfo{
			HasNextPage:     offset+limit < totalCount,
			HasPreviousPage: offset > 0,
		},
	}

	for i, row := range rows {
		conn.Edges = append(conn.Edges, Edge[T]{
			Node:   row,
			Cursor: p.EncodeCursor(offset+i, fingerprint),
		})
	}

	if len(conn.Edges) > 0 {
		start := conn.Edges[0].Cursor
		end := conn.Edges[len(conn.Edges)-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}

	return conn
}
