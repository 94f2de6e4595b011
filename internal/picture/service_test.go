package picture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/playerhub/internal/model"
	"github.com/hitoshi/playerhub/internal/repository"
)

// fakePictureRepo はインメモリのPictureRepository実装。
type fakePictureRepo struct {
	pictures  map[string]*model.Picture
	createErr error
}

func newFakePictureRepo() *fakePictureRepo {
	return &fakePictureRepo{pictures: make(map[string]*model.Picture)}
}

func (f *fakePictureRepo) FindByID(ctx context.Context, id string) (*model.Picture, error) {
	p, ok := f.pictures[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePictureRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Picture, error) {
	var out []*model.Picture
	for _, p := range f.pictures {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePictureRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Picture, error) {
	for _, p := range f.pictures {
		if p.UserID == userID && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePictureRepo) Create(ctx context.Context, picture *model.Picture) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *picture
	f.pictures[picture.ID] = &cp
	return nil
}

func (f *fakePictureRepo) SetActive(ctx context.Context, userID, pictureID string) error {
	for _, p := range f.pictures {
		if p.UserID == userID {
			p.IsActive = p.ID == pictureID
		}
	}
	return nil
}

func (f *fakePictureRepo) DeleteByID(ctx context.Context, id string) error {
	delete(f.pictures, id)
	return nil
}

func (f *fakePictureRepo) DeleteByUserID(ctx context.Context, userID string) ([]string, error) {
	var paths []string
	for id, p := range f.pictures {
		if p.UserID == userID {
			paths = append(paths, p.Path)
			delete(f.pictures, id)
		}
	}
	return paths, nil
}

var _ repository.PictureRepository = (*fakePictureRepo)(nil)

// newTestService はLocalStorageとテンプレートアセットを用意したServiceを返す。
func newTestService(t *testing.T) (*Service, *fakePictureRepo, *LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "default.png")
	if err := os.WriteFile(templatePath, []byte("template-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write template asset: %v", err)
	}

	repo := newFakePictureRepo()
	storage := NewLocalStorage(filepath.Join(dir, "blobs"))
	return NewService(repo, storage, templatePath), repo, storage
}

func TestService_CreateDefault_CopiesTemplate(t *testing.T) {
	svc, repo, storage := newTestService(t)
	ctx := context.Background()

	picture, err := svc.CreateDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	if !picture.IsActive {
		t.Error("default picture should be active")
	}
	if repo.pictures[picture.ID] == nil {
		t.Fatal("picture record should be persisted")
	}

	rc, err := storage.Get(ctx, picture.Path)
	if err != nil {
		t.Fatalf("stored file should exist: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, 32)
	n, _ := rc.Read(buf)
	if string(buf[:n]) != "template-bytes" {
		t.Errorf("stored content = %q, want template bytes", buf[:n])
	}
}

func TestService_CreateDefault_Idempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	second, err := svc.CreateDefault(ctx, "u1")
	if err != nil {
		t.Fatalf("second CreateDefault() error = %v", err)
	}
	if second.ID != first.ID {
		t.Error("second call should return the existing picture")
	}
	if len(repo.pictures) != 1 {
		t.Errorf("picture count = %d, want 1", len(repo.pictures))
	}
}

func TestService_Upload_FirstBecomesActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "u1", "avatar.png", strings.NewReader("img-1"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !first.IsActive {
		t.Error("first picture should become active")
	}

	second, err := svc.Upload(ctx, "u1", "avatar2.jpg", strings.NewReader("img-2"))
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if second.IsActive {
		t.Error("second picture should not be active while another is")
	}
}

func TestService_Upload_RejectsUnknownExtension(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "u1", "malware.exe", strings.NewReader("x"))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestService_Upload_RejectsOversize(t *testing.T) {
	svc, repo, storage := newTestService(t)

	// 上限ちょうどは受理されること
	exact := strings.NewReader(strings.Repeat("a", MaxUploadBytes))
	if _, err := svc.Upload(context.Background(), "u1", "exact.png", exact); err != nil {
		t.Fatalf("Upload() at limit error = %v", err)
	}

	// 上限を1バイトでも超えたら切り詰めずに拒否すること
	oversize := strings.NewReader(strings.Repeat("a", MaxUploadBytes+1))
	_, err := svc.Upload(context.Background(), "u1", "big.png", oversize)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}

	if len(repo.pictures) != 1 {
		t.Errorf("picture count = %d, want 1", len(repo.pictures))
	}
	matches, _ := filepath.Glob(filepath.Join(storage.root, "users", "u1", "*"))
	if len(matches) != 1 {
		t.Errorf("stored file count = %d, want 1", len(matches))
	}
}

func TestService_Upload_RecordFailure_CleansUpFile(t *testing.T) {
	svc, repo, storage := newTestService(t)
	repo.createErr = errors.New("db down")

	_, err := svc.Upload(context.Background(), "u1", "avatar.png", strings.NewReader("img"))
	if err == nil {
		t.Fatal("expected error when record creation fails")
	}

	// ファイルが残っていないこと
	matches, _ := filepath.Glob(filepath.Join(storage.root, "users", "u1", "*"))
	if len(matches) != 0 {
		t.Errorf("orphaned files remain: %v", matches)
	}
}

func TestService_SetActive_SwitchesExactlyOne(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Upload(ctx, "u1", "a.png", strings.NewReader("1"))
	second, _ := svc.Upload(ctx, "u1", "b.png", strings.NewReader("2"))

	if _, err := svc.SetActive(ctx, "u1", second.ID); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	if repo.pictures[first.ID].IsActive {
		t.Error("previous active picture should be deactivated")
	}
	if !repo.pictures[second.ID].IsActive {
		t.Error("selected picture should be active")
	}
}

func TestService_SetActive_OtherUsersPicture(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p, _ := svc.Upload(ctx, "u1", "a.png", strings.NewReader("1"))

	_, err := svc.SetActive(ctx, "u2", p.ID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePictureNotFound {
		t.Fatalf("expected PICTURE_NOT_FOUND, got %v", err)
	}
}

func TestService_Delete_ActivePictureRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	p, _ := svc.Upload(ctx, "u1", "a.png", strings.NewReader("1"))

	err := svc.Delete(ctx, "u1", p.ID)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePictureActive {
		t.Fatalf("expected PICTURE_ACTIVE, got %v", err)
	}
	if repo.pictures[p.ID] == nil {
		t.Error("active picture must not be deleted")
	}
}

func TestService_Delete_InactivePicture(t *testing.T) {
	svc, repo, storage := newTestService(t)
	ctx := context.Background()

	svc.Upload(ctx, "u1", "a.png", strings.NewReader("1"))
	second, _ := svc.Upload(ctx, "u1", "b.png", strings.NewReader("2"))

	if err := svc.Delete(ctx, "u1", second.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if repo.pictures[second.ID] != nil {
		t.Error("picture record should be deleted")
	}
	if _, err := storage.Get(ctx, second.Path); err == nil {
		t.Error("picture file should be deleted")
	}
}

func TestService_Delete_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Delete(context.Background(), "u1", "ghost")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePictureNotFound {
		t.Fatalf("expected PICTURE_NOT_FOUND, got %v", err)
	}
}

func TestService_DeleteUserData_RemovesEverything(t *testing.T) {
	svc, repo, storage := newTestService(t)
	ctx := context.Background()

	svc.Upload(ctx, "u1", "a.png", strings.NewReader("1"))
	svc.Upload(ctx, "u1", "b.png", strings.NewReader("2"))
	other, _ := svc.Upload(ctx, "u2", "c.png", strings.NewReader("3"))

	if err := svc.DeleteUserData(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUserData() error = %v", err)
	}

	for id, p := range repo.pictures {
		if p.UserID == "u1" {
			t.Errorf("picture %s for u1 should be deleted", id)
		}
	}
	// 他ユーザーの画像は残ること
	if repo.pictures[other.ID] == nil {
		t.Error("other user's picture must remain")
	}
	if _, err := storage.Get(ctx, other.Path); err != nil {
		t.Errorf("other user's file must remain: %v", err)
	}
	// u1のフォルダが消えていること
	if _, err := os.Stat(filepath.Join(storage.root, "users", "u1")); !os.IsNotExist(err) {
		t.Error("user folder should be removed")
	}
}

func TestLocalStorage_RejectsPathTraversal(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())

	if err := storage.Put(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for path traversal key")
	}
	if _, err := storage.Get(context.Background(), "/etc/passwd"); err == nil {
		t.Fatal("expected error for absolute key")
	}
}
