package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestSize(t *testing.T) {
	cases := map[int]int{0: DefaultPageSize, -3: DefaultPageSize, 5: 5, MaxPageSize: MaxPageSize, 500: MaxPageSize}
	for in, want := range cases {
		if got := (Pagination{PageSize: in}).Size(); got != want {
			t.Fatalf("Size(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, time.June, 15, 12, 0, 0, 123456789, time.UTC)
	token := EncodeCursor(Cursor{ID: "abc", CreatedAt: at})

	got, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "abc" || !got.CreatedAt.Equal(at) {
		t.Fatalf("unexpected cursor %+v", got)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", EncodeCursor(Cursor{ID: "abc"})} {
		if _, err := DecodeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
	if c, err := DecodeCursor("  "); err != nil || c != nil {
		t.Fatalf("empty token must yield nil cursor, got %v %v", c, err)
	}
}

func TestTrim(t *testing.T) {
	at := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	cursorOf := func(v int) Cursor { return Cursor{ID: string(rune('a' + v)), CreatedAt: at} }

	items, info := Trim([]int{1, 2, 3}, 2, cursorOf)
	if len(items) != 2 || !info.HasMore || info.NextPageToken == "" {
		t.Fatalf("unexpected page %v %+v", items, info)
	}
	next, err := DecodeCursor(info.NextPageToken)
	if err != nil || next.ID != "c" {
		t.Fatalf("next cursor must point at the last kept row, got %+v %v", next, err)
	}

	items, info = Trim([]int{1}, 2, cursorOf)
	if len(items) != 1 || info.HasMore || info.NextPageToken != "" {
		t.Fatalf("unexpected last page %v %+v", items, info)
	}
}
