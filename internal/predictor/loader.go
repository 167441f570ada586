package predictor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"github.com/angelmondragon/marketprep-backend/pkg/storage/gcs"
)

// ObjectStore is the slice of the GCS client the loader reads artifacts with.
type ObjectStore interface {
	Attrs(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error)
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// Loader owns the active model and swaps it atomically on reload.
type Loader struct {
	path    string
	objects ObjectStore
	logg    *logger.Logger

	current  atomic.Pointer[Forest]
	mu       sync.Mutex
	revision string
}

// NewLoader builds a loader for a local path or gs://bucket/object. An empty
// path yields a loader that never has a model.
func NewLoader(path string, objects ObjectStore, logg *logger.Logger) (*Loader, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "gs://") {
		if objects == nil {
			return nil, errors.New("gcs client required for gs:// model path")
		}
		if _, _, err := gcs.ParseURI(path); err != nil {
			return nil, err
		}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Loader{path: path, objects: objects, logg: logg}, nil
}

// Enabled reports whether a model path is configured.
func (l *Loader) Enabled() bool {
	return l != nil && l.path != ""
}

// Path returns the configured artifact location.
func (l *Loader) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Current returns the active model, or nil.
func (l *Loader) Current() *Forest {
	if l == nil {
		return nil
	}
	return l.current.Load()
}

// Reload fetches the artifact when its revision changed. A bad artifact is
// rejected and the previous model stays active.
func (l *Loader) Reload(ctx context.Context) (bool, error) {
	if !l.Enabled() {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	revision, err := l.revisionOf(ctx)
	if err != nil {
		return false, err
	}
	if revision == l.revision && l.current.Load() != nil {
		return false, nil
	}

	raw, err := l.read(ctx)
	if err != nil {
		return false, err
	}
	forest, err := ParseForest(raw)
	if err != nil {
		return false, err
	}
	if err := forest.Validate(features.SchemaVersion, features.Names()); err != nil {
		return false, fmt.Errorf("invalid model artifact %s: %w", l.path, err)
	}

	l.current.Store(forest)
	l.revision = revision

	ctx = l.logg.WithFields(ctx, map[string]any{
		"model_version": forest.ModelVersion,
		"model_path":    l.path,
		"revision":      revision,
		"trees":         len(forest.Trees),
	})
	l.logg.Info(ctx, "model loaded")
	return true, nil
}

func (l *Loader) revisionOf(ctx context.Context) (string, error) {
	if bucket, object, err := gcs.ParseURI(l.path); err == nil {
		attrs, err := l.objects.Attrs(ctx, bucket, object)
		if err != nil {
			return "", fmt.Errorf("stat model artifact: %w", err)
		}
		return attrs.Generation, nil
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return "", fmt.Errorf("stat model artifact: %w", err)
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	if bucket, object, err := gcs.ParseURI(l.path); err == nil {
		raw, err := l.objects.Download(ctx, bucket, object)
		if err != nil {
			return nil, fmt.Errorf("download model artifact: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return raw, nil
}
