package skins

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// fakeSlotRepo はemailをキーにしたインメモリ実装。
type fakeSlotRepo struct {
	records   map[string]*model.SlotRecord
	createErr error
	updateErr error
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{records: make(map[string]*model.SlotRecord)}
}

func (f *fakeSlotRepo) FindByEmail(ctx context.Context, email string) (*model.SlotRecord, error) {
	record, ok := f.records[email]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (f *fakeSlotRepo) Create(ctx context.Context, record *model.SlotRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *record
	f.records[record.Email] = &cp
	return nil
}

func (f *fakeSlotRepo) Update(ctx context.Context, record *model.SlotRecord) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *record
	f.records[record.Email] = &cp
	return nil
}

func (f *fakeSlotRepo) DeleteByEmail(ctx context.Context, email string) error {
	delete(f.records, email)
	return nil
}

var _ repository.SlotRepository = (*fakeSlotRepo)(nil)

func newServiceWithRecord(t *testing.T) (*Service, *fakeSlotRepo) {
	t.Helper()
	repo := newFakeSlotRepo()
	svc := NewService(repo)
	if _, err := svc.CreateDefault(context.Background(), "u1", "player@example.com"); err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	return svc, repo
}

// assertOneActive はちょうど1スロットだけ有効で、それが指定位置であることを検証する。
func assertOneActive(t *testing.T, record *model.SlotRecord, position int) {
	t.Helper()
	active := 0
	for i := range record.Slots {
		if record.Slots[i].IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active slots = %d, want exactly 1", active)
	}
	if idx := record.ActiveIndex(); idx != position-1 {
		t.Errorf("ActiveIndex() = %d, want %d", idx, position-1)
	}
}

func TestService_CreateDefault_InitialState(t *testing.T) {
	svc := NewService(newFakeSlotRepo())

	record, err := svc.CreateDefault(context.Background(), "u1", "player@example.com")
	if err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	if record.UserID != "u1" || record.Email != "player@example.com" {
		t.Errorf("record keys = (%q, %q)", record.UserID, record.Email)
	}
	// スロット1のみアンロック済み・有効
	assertOneActive(t, record, 1)
	if !record.Slots[0].IsUnlocked {
		t.Error("slot 1 should be unlocked")
	}
	if record.Slots[1].IsUnlocked || record.Slots[2].IsUnlocked {
		t.Error("slots 2 and 3 should start locked")
	}
}

func TestService_CreateDefault_Idempotent(t *testing.T) {
	svc, repo := newServiceWithRecord(t)

	// スロット状態を変更してから再作成を試みる
	record := repo.records["player@example.com"]
	record.Slots[1].IsUnlocked = true

	again, err := svc.CreateDefault(context.Background(), "u1", "player@example.com")
	if err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	// 既存レコードが返り、状態はリセットされないこと
	if !again.Slots[1].IsUnlocked {
		t.Error("existing record must be returned unchanged")
	}
}

func TestService_CreateDefault_EmptyEmail(t *testing.T) {
	svc := NewService(newFakeSlotRepo())

	_, err := svc.CreateDefault(context.Background(), "u1", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc := NewService(newFakeSlotRepo())

	_, err := svc.Get(context.Background(), "ghost@example.com")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSlotNotFound {
		t.Fatalf("expected SLOT_NOT_FOUND, got %v", err)
	}
}

func TestService_Activate_LockedSlotRejected(t *testing.T) {
	svc, repo := newServiceWithRecord(t)

	_, err := svc.Activate(context.Background(), "player@example.com", 2)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSlotLocked {
		t.Fatalf("expected SLOT_LOCKED, got %v", err)
	}
	// 拒否後もスロット1が有効のままであること
	assertOneActive(t, repo.records["player@example.com"], 1)
}

func TestService_UnlockThenActivate_ExactlyOneActive(t *testing.T) {
	svc, repo := newServiceWithRecord(t)
	ctx := context.Background()

	if _, err := svc.Unlock(ctx, "player@example.com", 2); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	record, err := svc.Activate(ctx, "player@example.com", 2)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	// アンロックしたスロットだけが有効になること
	assertOneActive(t, record, 2)
	assertOneActive(t, repo.records["player@example.com"], 2)
}

func TestService_Activate_PositionOutOfRange(t *testing.T) {
	svc, _ := newServiceWithRecord(t)

	for _, position := range []int{0, 4, -1} {
		_, err := svc.Activate(context.Background(), "player@example.com", position)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
			t.Errorf("position %d: expected VALIDATION error, got %v", position, err)
		}
	}
}

func TestService_Unlock_AlreadyUnlocked(t *testing.T) {
	svc, _ := newServiceWithRecord(t)

	record, err := svc.Unlock(context.Background(), "player@example.com", 1)
	if err != nil {
		t.Fatalf("Unlock() on unlocked slot should succeed: %v", err)
	}
	if !record.Slots[0].IsUnlocked {
		t.Error("slot 1 should remain unlocked")
	}
}

func TestService_SetSlotNumber(t *testing.T) {
	svc, repo := newServiceWithRecord(t)

	record, err := svc.SetSlotNumber(context.Background(), "player@example.com", 1, 42)
	if err != nil {
		t.Fatalf("SetSlotNumber() error = %v", err)
	}
	if record.Slots[0].Number != 42 {
		t.Errorf("slot 1 number = %d, want 42", record.Slots[0].Number)
	}
	if repo.records["player@example.com"].Slots[0].Number != 42 {
		t.Error("number change should be persisted")
	}
}

func TestService_SetSlotNumber_LockedSlotRejected(t *testing.T) {
	svc, _ := newServiceWithRecord(t)

	_, err := svc.SetSlotNumber(context.Background(), "player@example.com", 3, 7)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSlotLocked {
		t.Fatalf("expected SLOT_LOCKED, got %v", err)
	}
}

func TestService_SetSlotNumber_NegativeNumber(t *testing.T) {
	svc, _ := newServiceWithRecord(t)

	_, err := svc.SetSlotNumber(context.Background(), "player@example.com", 1, -5)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestService_Delete_MissingRecordIsNoop(t *testing.T) {
	svc := NewService(newFakeSlotRepo())

	if err := svc.Delete(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("Delete() should tolerate missing record: %v", err)
	}
}

func TestService_Activate_UpdatesTimestamp(t *testing.T) {
	svc, repo := newServiceWithRecord(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	if _, err := svc.Unlock(context.Background(), "player@example.com", 2); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if !repo.records["player@example.com"].UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", repo.records["player@example.com"].UpdatedAt, fixed)
	}
}
