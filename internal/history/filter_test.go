package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"
)

type mockStore struct {
	existsFunc  func(ctx context.Context, userID, postingID uint) (bool, error)
	insertFunc  func(ctx context.Context, record *model.DeliveryRecord) error
	deleteFunc  func(ctx context.Context, userID uint, cutoff time.Time) error
	existsCalls int
	inserted    []model.DeliveryRecord
}

func (m *mockStore) Exists(ctx context.Context, userID, postingID uint) (bool, error) {
	m.existsCalls++
	if m.existsFunc != nil {
		return m.existsFunc(ctx, userID, postingID)
	}
	return false, nil
}

func (m *mockStore) Insert(ctx context.Context, record *model.DeliveryRecord) error {
	if m.insertFunc != nil {
		if err := m.insertFunc(ctx, record); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, *record)
	return nil
}

func (m *mockStore) DeleteOlderThan(ctx context.Context, userID uint, cutoff time.Time) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, cutoff)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() *model.User {
	return &model.User{ID: 7, Name: "Ana", Email: "ana@example.com", IsActive: true}
}

func postings(ids ...uint) []model.Posting {
	out := make([]model.Posting, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Posting{ID: id, ExternalID: "ext", Title: "Job"})
	}
	return out
}

func TestFilterNew_EmptyInputSkipsStore(t *testing.T) {
	store := &mockStore{}
	filter := NewFilter(store, testLogger())

	got := filter.FilterNew(context.Background(), testUser(), nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("empty input must return empty slice, got %v", got)
	}
	if store.existsCalls != 0 {
		t.Fatalf("empty input must not query the store, got %d calls", store.existsCalls)
	}
}

func TestFilterNew_SuppressesAlreadySent(t *testing.T) {
	store := &mockStore{
		existsFunc: func(ctx context.Context, userID, postingID uint) (bool, error) {
			return postingID == 2, nil
		},
	}
	filter := NewFilter(store, testLogger())

	got := filter.FilterNew(context.Background(), testUser(), postings(1, 2, 3))
	if len(got) != 2 {
		t.Fatalf("expected 2 fresh postings, got %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("order must be preserved, got %v then %v", got[0].ID, got[1].ID)
	}
}

func TestFilterNew_LookupFailureKeepsPosting(t *testing.T) {
	store := &mockStore{
		existsFunc: func(ctx context.Context, userID, postingID uint) (bool, error) {
			if postingID == 2 {
				return false, errors.New("connection reset")
			}
			return true, nil
		},
	}
	filter := NewFilter(store, testLogger())

	got := filter.FilterNew(context.Background(), testUser(), postings(1, 2, 3))
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("lookup failure must conservatively keep the posting, got %v", got)
	}
}

func TestMarkSentThenFilterNew(t *testing.T) {
	sent := map[uint]bool{}
	store := &mockStore{
		existsFunc: func(ctx context.Context, userID, postingID uint) (bool, error) {
			return sent[postingID], nil
		},
		insertFunc: func(ctx context.Context, record *model.DeliveryRecord) error {
			sent[record.PostingID] = true
			return nil
		},
	}
	filter := NewFilter(store, testLogger())
	user := testUser()
	batch := postings(10, 11)

	filter.MarkSent(context.Background(), user, batch, "Backend Jobs")

	got := filter.FilterNew(context.Background(), user, batch)
	if len(got) != 0 {
		t.Fatalf("postings marked as sent must be suppressed, got %d", len(got))
	}
	for _, record := range store.inserted {
		if record.UserID != user.ID {
			t.Fatalf("record carries wrong user id %d", record.UserID)
		}
		if record.AlertTitle != "Backend Jobs" {
			t.Fatalf("record carries wrong alert title %q", record.AlertTitle)
		}
		if record.SentAt.IsZero() {
			t.Fatal("record must carry a sent timestamp")
		}
	}
}

func TestMarkSent_InsertFailureContinues(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, record *model.DeliveryRecord) error {
			if record.PostingID == 11 {
				return errors.New("duplicate entry")
			}
			return nil
		},
	}
	filter := NewFilter(store, testLogger())

	filter.MarkSent(context.Background(), testUser(), postings(10, 11, 12), "Backend Jobs")

	if len(store.inserted) != 2 {
		t.Fatalf("one failed insert must not stop the rest, got %d records", len(store.inserted))
	}
	if store.inserted[0].PostingID != 10 || store.inserted[1].PostingID != 12 {
		t.Fatalf("unexpected records %+v", store.inserted)
	}
}

func TestPrune_CutoffAndErrorSwallowed(t *testing.T) {
	var gotCutoff time.Time
	store := &mockStore{
		deleteFunc: func(ctx context.Context, userID uint, cutoff time.Time) error {
			gotCutoff = cutoff
			return nil
		},
	}
	filter := NewFilter(store, testLogger())

	filter.Prune(context.Background(), 7, 30)
	want := time.Now().AddDate(0, 0, -30)
	if gotCutoff.Before(want.Add(-time.Minute)) || gotCutoff.After(want.Add(time.Minute)) {
		t.Fatalf("cutoff must be ~30 days ago, got %v", gotCutoff)
	}

	store.deleteFunc = func(ctx context.Context, userID uint, cutoff time.Time) error {
		return errors.New("lock wait timeout")
	}
	// 失败只记日志，不 panic 也不向上冒泡
	filter.Prune(context.Background(), 7, 30)
}
