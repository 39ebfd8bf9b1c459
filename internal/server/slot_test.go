package server

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func newTestSlot(t *testing.T) *Slot {
	t.Helper()
	slot, err := NewSlot(t.TempDir(), "test.png", "image/png")
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	return slot
}

func stage(t *testing.T, slot *Slot, content string) string {
	t.Helper()
	f, err := slot.CreateTemp()
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write staging file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close staging file: %v", err)
	}
	return f.Name()
}

func readArtifact(t *testing.T, slot *Slot) string {
	t.Helper()
	f, _, err := slot.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	return string(b)
}

func TestNewSlot_RejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "a/b.png", "../x.png", ".upload-x"} {
		if _, err := NewSlot(t.TempDir(), name, "image/png"); err == nil {
			t.Errorf("NewSlot(%q) succeeded, want error", name)
		}
	}
}

func TestNewSlot_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	slot, err := NewSlot(dir, "test.png", "")
	if err != nil {
		t.Fatalf("NewSlot: %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("slot dir not created: %v", err)
	}
	if slot.ContentType() != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream default", slot.ContentType())
	}
}

func TestSlot_OpenBeforeInstall(t *testing.T) {
	slot := newTestSlot(t)
	if _, _, err := slot.Open(); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("Open error = %v, want ErrArtifactNotFound", err)
	}
	if _, err := slot.Stat(); !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("Stat error = %v, want ErrArtifactNotFound", err)
	}
}

func TestSlot_InstallAndReplace(t *testing.T) {
	slot := newTestSlot(t)

	first := stage(t, slot, "first")
	if err := slot.Install(first); err != nil {
		t.Fatalf("Install first: %v", err)
	}
	if got := readArtifact(t, slot); got != "first" {
		t.Fatalf("artifact = %q, want first", got)
	}

	second := stage(t, slot, "second")
	if err := slot.Install(second); err != nil {
		t.Fatalf("Install second: %v", err)
	}
	if got := readArtifact(t, slot); got != "second" {
		t.Fatalf("artifact = %q, want second", got)
	}
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("staging file %s still present", p)
		}
	}
}

func TestSlot_InstallRetriesOnceWhenDestinationExists(t *testing.T) {
	slot := newTestSlot(t)
	if err := slot.Install(stage(t, slot, "old")); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	calls := 0
	slot.rename = func(oldpath, newpath string) error {
		calls++
		if calls == 1 {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
		}
		return os.Rename(oldpath, newpath)
	}

	if err := slot.Install(stage(t, slot, "new")); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if calls != 2 {
		t.Errorf("rename called %d times, want 2", calls)
	}
	if got := readArtifact(t, slot); got != "new" {
		t.Errorf("artifact = %q, want new", got)
	}
}

func TestSlot_InstallSurfacesSecondFailure(t *testing.T) {
	slot := newTestSlot(t)
	if err := slot.Install(stage(t, slot, "old")); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	calls := 0
	slot.rename = func(oldpath, newpath string) error {
		calls++
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EEXIST}
	}

	err := slot.Install(stage(t, slot, "new"))
	if !errors.Is(err, ErrInstall) {
		t.Fatalf("Install error = %v, want ErrInstall", err)
	}
	if calls != 2 {
		t.Errorf("rename called %d times, want exactly 2", calls)
	}
}

func TestSlot_InstallOtherErrorNoRetry(t *testing.T) {
	slot := newTestSlot(t)
	if err := slot.Install(stage(t, slot, "old")); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	calls := 0
	slot.rename = func(oldpath, newpath string) error {
		calls++
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	if err := slot.Install(stage(t, slot, "new")); !errors.Is(err, ErrInstall) {
		t.Fatalf("Install error = %v, want ErrInstall", err)
	}
	if calls != 1 {
		t.Errorf("rename called %d times, want 1", calls)
	}
	if got := readArtifact(t, slot); got != "old" {
		t.Errorf("artifact = %q, want the previous artifact untouched", got)
	}
}

func TestSlot_OpenKeepsOldContentAcrossReplace(t *testing.T) {
	slot := newTestSlot(t)
	if err := slot.Install(stage(t, slot, "old")); err != nil {
		t.Fatalf("seed install: %v", err)
	}

	f, _, err := slot.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if err := slot.Install(stage(t, slot, "new")); err != nil {
		t.Fatalf("Install: %v", err)
	}

	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "old" {
		t.Errorf("open reader saw %q, want old", b)
	}
}
