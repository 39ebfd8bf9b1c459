package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// host:port, insecure by default for a local MinIO.
	return raw, false, nil
}

// MirrorConfig describes the S3-compatible bucket the artifact is copied to.
type MirrorConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	ObjectKey string
}

// LoadMirrorConfig reads the mirror settings. ok is false when no endpoint is
// configured, which disables mirroring.
func LoadMirrorConfig() (cfg MirrorConfig, ok bool) {
	cfg = MirrorConfig{
		Endpoint:  os.Getenv("SLOTDROP_S3_ENDPOINT"),
		AccessKey: os.Getenv("SLOTDROP_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SLOTDROP_S3_SECRET_KEY"),
		Bucket:    os.Getenv("SLOTDROP_BUCKET"),
		ObjectKey: os.Getenv("SLOTDROP_S3_OBJECT_KEY"),
	}
	return cfg, cfg.Endpoint != ""
}

// Mirror copies the installed artifact to object storage. The local slot
// stays authoritative; a failed copy is logged and retried on the next
// install.
type Mirror struct {
	client  *minio.Client
	bucket  string
	key     string
	breaker *CircuitBreaker
	timeout time.Duration

	pushMu sync.Mutex
	wg     sync.WaitGroup
}

// NewMirror connects to the bucket and checks it exists. An empty ObjectKey
// defaults to slotName.
func NewMirror(ctx context.Context, cfg MirrorConfig, slotName string) (*Mirror, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	key := cfg.ObjectKey
	if key == "" {
		key = slotName
	}
	return &Mirror{
		client:  client,
		bucket:  cfg.Bucket,
		key:     key,
		breaker: NewCircuitBreaker("mirror", 3, 30*time.Second),
		timeout: 5 * time.Minute,
	}, nil
}

// Push uploads whatever the slot currently holds. Pushes run one at a time,
// so the last push to finish always carries the newest artifact.
func (m *Mirror) Push(ctx context.Context, slot *Slot) error {
	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	return m.breaker.Execute(func() error {
		f, info, err := slot.Open()
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = m.client.PutObject(ctx, m.bucket, m.key, f, info.Size(),
			minio.PutObjectOptions{ContentType: slot.ContentType()})
		if err != nil {
			return fmt.Errorf("put object: %w", err)
		}
		return nil
	})
}

// PushAsync runs Push in the background and logs the outcome.
func (m *Mirror) PushAsync(slot *Slot, rid string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if err := m.Push(ctx, slot); err != nil {
			Warn("mirror_push_failed", map[string]any{
				"request_id": rid,
				"bucket":     m.bucket,
				"key":        m.key,
				"error":      err.Error(),
			})
			return
		}
		Debug("mirror_push_complete", map[string]any{
			"request_id": rid,
			"bucket":     m.bucket,
			"key":        m.key,
		})
	}()
}

// Wait blocks until background pushes have finished.
func (m *Mirror) Wait() {
	m.wg.Wait()
}

// Restore downloads the mirrored copy into the slot when the slot is empty,
// so a fresh instance serves the last artifact. It reports whether a copy
// was restored.
func (m *Mirror) Restore(ctx context.Context, slot *Slot) (bool, error) {
	if _, err := slot.Stat(); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrArtifactNotFound) {
		return false, err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.key, minio.GetObjectOptions{})
	if err != nil {
		return false, fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = obj.Close() }()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}

	f, err := slot.CreateTemp()
	if err != nil {
		return false, err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := io.Copy(f, obj); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("copy object: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	if err := slot.Install(tmp); err != nil {
		return false, err
	}
	return true, nil
}
