package history

import (
	"context"
	"errors"
	"testing"
)

type fakeRepository struct {
	created   []*BookingAttempt
	lastLimit int
}

func (f *fakeRepository) Create(_ context.Context, attempt *BookingAttempt) error {
	f.created = append(f.created, attempt)
	return nil
}

func (f *fakeRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]BookingAttempt, int64, error) {
	f.lastLimit = limit
	var out []BookingAttempt
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].UserID == userID {
			out = append(out, *f.created[i])
		}
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func TestHistoryRecordAndList(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo)
	ctx := context.Background()

	svc.Record(ctx, &BookingAttempt{UserID: "1", Action: ActionBook, Seat: "Platz 1", Success: true})
	svc.Record(ctx, &BookingAttempt{UserID: "2", Action: ActionBook, Seat: "Platz 2"})
	svc.Record(ctx, &BookingAttempt{UserID: "1", Action: ActionCancel, EntryID: "901", Success: true})

	page, err := svc.List(ctx, "1", 0, -5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %+v", page)
	}
	if page.Attempts[0].Action != ActionCancel {
		t.Fatalf("expected newest first, got %s", page.Attempts[0].Action)
	}
	if page.Limit != defaultLimit || page.Offset != 0 {
		t.Fatalf("expected defaults, got limit %d offset %d", page.Limit, page.Offset)
	}

	svc.List(ctx, "1", 1000, 0)
	if repo.lastLimit != maxLimit {
		t.Fatalf("expected limit to be capped at %d, got %d", maxLimit, repo.lastLimit)
	}
}

func TestHistoryDisabled(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Record(context.Background(), &BookingAttempt{UserID: "1"}); err != nil {
		t.Fatalf("record without repository should be a no-op: %v", err)
	}
	if _, err := svc.List(context.Background(), "1", 10, 0); !errors.Is(err, ErrHistoryDisabled) {
		t.Fatalf("expected ErrHistoryDisabled, got %v", err)
	}
}
