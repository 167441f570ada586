package predictor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/storage/gcs"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	generation string
	body       []byte
	downloads  int
}

func (f *fakeObjects) Attrs(_ context.Context, bucket, object string) (*gcs.ObjectAttrs, error) {
	return &gcs.ObjectAttrs{Bucket: bucket, Name: object, Generation: f.generation}, nil
}

func (f *fakeObjects) Download(context.Context, string, string) ([]byte, error) {
	f.downloads++
	return f.body, nil
}

func TestLoaderEmptyPathIsHeuristicOnly(t *testing.T) {
	l, err := NewLoader("", nil, nil)
	require.NoError(t, err)
	require.False(t, l.Enabled())

	changed, err := l.Reload(context.Background())
	require.NoError(t, err)
	require.False(t, changed)
	require.Nil(t, l.Current())
}

func TestLoaderGSRequiresClient(t *testing.T) {
	_, err := NewLoader("gs://models/rf.json", nil, nil)
	require.Error(t, err)

	_, err = NewLoader("gs://models", &fakeObjects{}, nil)
	require.Error(t, err)
}

func TestLoaderReloadsOnGenerationChange(t *testing.T) {
	objects := &fakeObjects{generation: "1", body: mustMarshal(t, testForest("rf-1"))}
	l, err := NewLoader("gs://models/rf.json", objects, nil)
	require.NoError(t, err)
	ctx := context.Background()

	changed, err := l.Reload(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "rf-1", l.Current().ModelVersion)

	changed, err = l.Reload(ctx)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, objects.downloads)

	objects.generation = "2"
	objects.body = mustMarshal(t, testForest("rf-2"))
	changed, err = l.Reload(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "rf-2", l.Current().ModelVersion)
}

func TestLoaderKeepsPreviousModelOnBadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, mustMarshal(t, testForest("rf-good")), 0o600))

	l, err := NewLoader(path, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = l.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, "rf-good", l.Current().ModelVersion)

	bad := testForest("rf-bad")
	bad.SchemaVersion = "v0"
	require.NoError(t, os.WriteFile(path, mustMarshal(t, bad), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err := l.Reload(ctx)
	require.Error(t, err)
	require.False(t, changed)
	require.Equal(t, "rf-good", l.Current().ModelVersion)
}

func TestLoaderMissingLocalFile(t *testing.T) {
	l, err := NewLoader(filepath.Join(t.TempDir(), "missing.json"), nil, nil)
	require.NoError(t, err)

	_, err = l.Reload(context.Background())
	require.Error(t, err)
	require.Nil(t, l.Current())
}
