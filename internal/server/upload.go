package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// maxFieldBytes caps how much of a plain text form field is kept in memory.
const maxFieldBytes = 1 << 20

// Upload is the parsed form of one ingest request. The staged file lives at
// TempPath until it is installed or discarded.
type Upload struct {
	Filename    string
	ContentType string
	TempPath    string
	Size        int64
	SHA256      string
	Fields      map[string]string
}

// discard removes the staged file, if any.
func (u *Upload) discard() {
	if u.TempPath != "" {
		_ = os.Remove(u.TempPath)
	}
}

// readTracker remembers read errors so a failing body can be told apart from
// a failing disk while copying.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// parseUpload consumes the whole multipart body, staging the file part named
// uploadField into the slot directory. It fails with ErrParse when the body
// is malformed or interrupted and with ErrMissingFile when no file was sent.
// On failure nothing is left behind in the slot directory.
func parseUpload(r *http.Request, slot *Slot) (*Upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	up := &Upload{Fields: make(map[string]string)}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			up.discard()
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		switch {
		case part.FormName() == uploadField && part.FileName() != "" && up.TempPath == "":
			err = up.stage(slot, part)
		case part.FileName() == "":
			err = up.readField(part)
		}
		// Close drains whatever the branch above left unread.
		_ = part.Close()
		if err != nil {
			up.discard()
			return nil, err
		}
	}

	if up.TempPath == "" {
		return nil, ErrMissingFile
	}
	if err := r.Context().Err(); err != nil {
		up.discard()
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return up, nil
}

func (u *Upload) readField(part *multipart.Part) error {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return fmt.Errorf("%w: read field %q: %w", ErrParse, part.FormName(), err)
	}
	u.Fields[part.FormName()] = string(b)
	return nil
}

// stage streams one file part to a staging file, hashing it on the way.
func (u *Upload) stage(slot *Slot, part *multipart.Part) error {
	f, err := slot.CreateTemp()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}
	u.TempPath = f.Name()
	u.Filename = part.FileName()
	u.ContentType = part.Header.Get("Content-Type")

	h := sha256.New()
	src := &readTracker{r: part}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err != nil {
		_ = f.Close()
		if src.err != nil {
			return fmt.Errorf("%w: read file part: %w", ErrParse, err)
		}
		return fmt.Errorf("%w: write staging file: %w", ErrInstall, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync staging file: %w", ErrInstall, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close staging file: %w", ErrInstall, err)
	}

	u.Size = n
	u.SHA256 = hex.EncodeToString(h.Sum(nil))
	return nil
}

// uploadHandler handles POST /upload. It parses the multipart body, installs
// the file part named "upload" as the artifact and only then confirms with a
// page embedding /show. Nothing is written before the install is known to
// have succeeded.
func (s *Server) uploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := RequestIDFromContext(r.Context())
		m := GetMetrics()

		up, err := parseUpload(r, s.slot)
		if err != nil {
			m.RecordUploadError(err)
			Warn("upload_rejected", map[string]any{
				"request_id": rid,
				"error":      err.Error(),
			})
			writeError(w, err)
			return
		}
		defer up.discard()

		if err := s.slot.Install(up.TempPath); err != nil {
			m.RecordUploadError(err)
			Error("install_failed", map[string]any{
				"request_id": rid,
				"filename":   up.Filename,
				"staged":     up.TempPath,
			}, err)
			writeError(w, err)
			return
		}
		up.TempPath = ""

		m.RecordUpload(up.Size, time.Since(start))
		Info("artifact_installed", map[string]any{
			"request_id": rid,
			"filename":   up.Filename,
			"bytes":      up.Size,
			"sha256":     up.SHA256,
		})

		s.afterInstall(r.Context(), rid, up)

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(confirmPage))
	})
}

// afterInstall records the install and schedules the mirror copy. Failures
// are logged only: the artifact is already in place.
func (s *Server) afterInstall(ctx context.Context, rid string, up *Upload) {
	rec := InstallRecord{
		ID:          uuid.New(),
		Filename:    up.Filename,
		ContentType: up.ContentType,
		SizeBytes:   up.Size,
		SHA256Hex:   up.SHA256,
		RequestID:   rid,
		InstalledAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.audit.RecordInstall(ctx, rec); err != nil {
		Warn("audit_record_failed", map[string]any{
			"request_id": rid,
			"error":      err.Error(),
		})
	}
	if s.mirror != nil {
		s.mirror.PushAsync(s.slot, rid)
	}
}
