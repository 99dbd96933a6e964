package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/forge-e2e/internal/config"
	"github.com/kuitang/forge-e2e/internal/obs"
)

type fakeSource struct {
	html    string
	htmlErr error
	url     string
}

func (f fakeSource) HTML() (string, error) { return f.html, f.htmlErr }
func (f fakeSource) CurrentURL() string    { return f.url }

type shootingSource struct {
	fakeSource
	png []byte
	err error
}

func (s shootingSource) Screenshot() ([]byte, error) { return s.png, s.err }

func TestS3Store_PutGetDelete(t *testing.T) {
	store := TestS3Store(t, "artifacts-test")
	ctx := context.Background()

	loc, err := store.Put(ctx, "run-1/login/page.html", []byte("<html></html>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "s3://artifacts-test/run-1/login/page.html", loc)

	got, err := store.Get(ctx, "run-1/login/page.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(got))

	keys, err := store.List(ctx, "run-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/login/page.html"}, keys)

	require.NoError(t, store.Delete(ctx, "run-1/login/page.html"))
	_, err = store.Get(ctx, "run-1/login/page.html")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Store_GetMissing(t *testing.T) {
	store := TestS3Store(t, "artifacts-missing")
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "artifacts-missing", store.BucketName())
}

func TestDirStore_Put(t *testing.T) {
	root := t.TempDir()
	store := DirStore{Root: root}

	loc, err := store.Put(context.Background(), "run-1/create/page.html", []byte("x"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run-1", "create", "page.html"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestDirStore_RejectsEscapingKey(t *testing.T) {
	store := DirStore{Root: t.TempDir()}
	_, err := store.Put(context.Background(), "../outside.html", []byte("x"), "text/html")
	assert.Error(t, err)
	_, err = store.Get(context.Background(), "../outside.html")
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), "../outside.html"))
}

func TestDirStore_GetListDelete(t *testing.T) {
	store := DirStore{Root: t.TempDir()}
	ctx := context.Background()
	for _, key := range []string{"run-2/api/page.html", "run-1/login/screenshot.png", "run-1/login/page.html"} {
		_, err := store.Put(ctx, key, []byte(key), "text/plain")
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "run-1/login/page.html")
	require.NoError(t, err)
	assert.Equal(t, "run-1/login/page.html", string(got))

	keys, err := store.List(ctx, "run-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/login/page.html", "run-1/login/screenshot.png"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Delete(ctx, "run-1/login/page.html"))
	require.NoError(t, store.Delete(ctx, "run-1/login/page.html"), "deleting twice is fine")
	_, err = store.Get(ctx, "run-1/login/page.html")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDirStore_ListMissingRoot(t *testing.T) {
	store := DirStore{Root: filepath.Join(t.TempDir(), "never-written")}
	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPrefix(t *testing.T) {
	ctx := obs.WithScenario(context.Background(), obs.Scenario{RunID: "run-abc"})
	assert.Equal(t, "run-abc/login_flow/", Prefix(ctx, "login flow"))
	assert.Equal(t, "run-abc/TestE2E_Create_Project/", Prefix(ctx, "TestE2E/Create Project"))
	assert.Equal(t, "run-abc/scenario/", Prefix(ctx, "///"))

	noRun := Prefix(context.Background(), "x")
	assert.True(t, strings.HasPrefix(noRun, "run-"), noRun)
	assert.True(t, strings.HasSuffix(noRun, "/x/"), noRun)
}

func TestCapture_HTMLAndScreenshot(t *testing.T) {
	store := TestS3Store(t, "capture-both")
	ctx := obs.WithScenario(context.Background(), obs.Scenario{RunID: "run-1"})
	src := shootingSource{
		fakeSource: fakeSource{html: "<p>hi</p>", url: "http://forge.test/user/login"},
		png:        []byte{0x89, 'P', 'N', 'G'},
	}

	locs, err := Capture(ctx, store, src, "login")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"s3://capture-both/run-1/login/page.html",
		"s3://capture-both/run-1/login/screenshot.png",
	}, locs)

	page, err := store.Get(ctx, "run-1/login/page.html")
	require.NoError(t, err)
	assert.Contains(t, string(page), "<!-- http://forge.test/user/login -->")
	assert.Contains(t, string(page), "<p>hi</p>")
}

func TestCapture_WithoutScreenshotter(t *testing.T) {
	root := t.TempDir()
	ctx := obs.WithScenario(context.Background(), obs.Scenario{RunID: "run-2"})

	locs, err := Capture(ctx, DirStore{Root: root}, fakeSource{html: "<p/>"}, "api")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.FileExists(t, filepath.Join(root, "run-2", "api", "page.html"))
	assert.NoFileExists(t, filepath.Join(root, "run-2", "api", "screenshot.png"))
}

func TestCapture_KeepsGoingAfterFailure(t *testing.T) {
	root := t.TempDir()
	ctx := obs.WithScenario(context.Background(), obs.Scenario{RunID: "run-3"})
	htmlErr := errors.New("page crashed")
	src := shootingSource{fakeSource: fakeSource{htmlErr: htmlErr}, png: []byte("png")}

	locs, err := Capture(ctx, DirStore{Root: root}, src, "create")
	assert.ErrorIs(t, err, htmlErr)
	require.Len(t, locs, 1)
	assert.FileExists(t, filepath.Join(root, "run-3", "create", "screenshot.png"))
}

func TestCapture_Disabled(t *testing.T) {
	locs, err := Capture(context.Background(), nil, fakeSource{}, "x")
	assert.NoError(t, err)
	assert.Nil(t, locs)
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	store, err := FromConfig(ctx, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = FromConfig(ctx, &config.Config{ArtifactsDir: "/tmp/a"})
	require.NoError(t, err)
	assert.Equal(t, DirStore{Root: "/tmp/a"}, store)

	store, err = FromConfig(ctx, &config.Config{
		ArtifactsDir:       "/tmp/a",
		ArtifactsBucket:    "b",
		AWSRegion:          "us-east-1",
		AWSEndpointS3:      "http://localhost:9000",
		AWSAccessKeyID:     "k",
		AWSSecretAccessKey: "s",
	})
	require.NoError(t, err)
	s3store, ok := store.(*S3Store)
	require.True(t, ok)
	assert.Equal(t, "b", s3store.BucketName())
}
