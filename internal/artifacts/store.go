// Package artifacts keeps the page source and a screenshot of a failed
// scenario, in a local directory or an S3 bucket.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kuitang/forge-e2e/internal/config"
	"github.com/kuitang/forge-e2e/internal/obs"
)

// Store persists one artifact and returns where it went.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

// Archive is a Store that can also read back, list and remove what it kept.
type Archive interface {
	Store
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

var (
	_ Archive = DirStore{}
	_ Archive = (*S3Store)(nil)
)

// DirStore writes artifacts below Root. Keys are slash-separated paths
// relative to Root.
type DirStore struct {
	Root string
}

func (d DirStore) path(key string) (string, error) {
	path := filepath.Join(d.Root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(d.Root)+string(filepath.Separator)) {
		return "", fmt.Errorf("artifacts: key %q escapes %s", key, d.Root)
	}
	return path, nil
}

func (d DirStore) Put(_ context.Context, key string, content []byte, _ string) (string, error) {
	path, err := d.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: %w", err)
	}
	return path, nil
}

func (d DirStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	return data, nil
}

// List returns the keys under prefix in lexical order. A missing Root
// holds no keys.
func (d DirStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(d.Root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			if path == d.Root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("artifacts: failed to list %q: %w", prefix, err)
	}
	return keys, nil
}

// Delete removes the artifact at key. Missing keys are not an error.
func (d DirStore) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}

// FromConfig picks the store the configuration asks for. A bucket wins over
// a directory; with neither, it returns nil and capture is disabled.
func FromConfig(ctx context.Context, cfg *config.Config) (Archive, error) {
	switch {
	case cfg.ArtifactsBucket != "":
		s, err := NewS3Store(ctx, S3Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.ArtifactsBucket,
			UsePathStyle:    cfg.AWSEndpointS3 != "",
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.ArtifactsDir != "":
		return DirStore{Root: cfg.ArtifactsDir}, nil
	default:
		return nil, nil
	}
}

// Source is what a capture reads from. Sessions that can also take
// screenshots implement Screenshotter.
type Source interface {
	HTML() (string, error)
	CurrentURL() string
}

type Screenshotter interface {
	Screenshot() ([]byte, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Prefix is the key prefix for a scenario's artifacts:
// "<run id>/<scenario name>/".
func Prefix(ctx context.Context, name string) string {
	run := obs.ScenarioFromContext(ctx).RunID
	if run == "" {
		run = "run-" + time.Now().UTC().Format("20060102T150405Z")
	}
	name = strings.Trim(unsafeKeyChars.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "scenario"
	}
	return run + "/" + name + "/"
}

// Capture stores the current page's HTML, and a screenshot when src can
// take one. It keeps going after a failed part and returns every location
// written along with the first error.
func Capture(ctx context.Context, store Store, src Source, name string) ([]string, error) {
	if store == nil || src == nil {
		return nil, nil
	}
	prefix := Prefix(ctx, name)
	logger := obs.From(ctx).With("pkg", "artifacts")

	var locations []string
	var firstErr error
	keep := func(loc string, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		locations = append(locations, loc)
	}

	html, err := src.HTML()
	if err == nil {
		page := fmt.Sprintf("<!-- %s -->\n%s", src.CurrentURL(), html)
		keep(store.Put(ctx, prefix+"page.html", []byte(page), "text/html; charset=utf-8"))
	} else {
		keep("", fmt.Errorf("artifacts: read page html: %w", err))
	}

	if shooter, ok := src.(Screenshotter); ok {
		png, err := shooter.Screenshot()
		if err == nil {
			keep(store.Put(ctx, prefix+"screenshot.png", png, "image/png"))
		} else {
			keep("", fmt.Errorf("artifacts: screenshot: %w", err))
		}
	}

	logger.Info("artifacts_captured", "scenario", name, "locations", locations, "error", firstErr)
	return locations, firstErr
}
