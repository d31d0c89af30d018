package pagination

import (
	"testing"
	"time"
)

type row struct {
	id string
	at time.Time
}

func TestBuildCursorPageInfoTrimsAndEncodes(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []*row{
		{id: "1", at: base},
		{id: "2", at: base.Add(time.Minute)},
		{id: "3", at: base.Add(2 * time.Minute)},
	}

	page, info, err := BuildCursorPageInfo(rows, 2, func(r *row) Cursor {
		return NewCursor(r.id, r.at)
	})
	if err != nil {
		t.Fatalf("build page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	if !info.HasMore || info.NextPageToken == "" {
		t.Fatalf("expected next page token, got %+v", info)
	}

	cursor, err := DecodeCursor(info.NextPageToken)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if cursor.ID != "2" {
		t.Fatalf("expected cursor at row 2, got %s", cursor.ID)
	}
	at, err := cursor.Time()
	if err != nil || !at.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected cursor time %v (%v)", at, err)
	}
}

func TestBuildCursorPageInfoLastPage(t *testing.T) {
	rows := []*row{{id: "1", at: time.Now()}}
	page, info, err := BuildCursorPageInfo(rows, 5, func(r *row) Cursor { return NewCursor(r.id, r.at) })
	if err != nil {
		t.Fatalf("build page: %v", err)
	}
	if len(page) != 1 || info.HasMore || info.NextPageToken != "" {
		t.Fatalf("unexpected last page %+v", info)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("%%%"); err != ErrInvalidPageToken {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestLimitClamps(t *testing.T) {
	if got := (Pagination{}).Limit(); got != DefaultPageSize {
		t.Fatalf("expected default, got %d", got)
	}
	if got := (Pagination{PageSize: 1000}).Limit(); got != MaxPageSize {
		t.Fatalf("expected max, got %d", got)
	}
}
