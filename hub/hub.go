// Package hub fetches remote assets (tokenizer files, dataset splits) into a
// local cache directory.
//
// Downloads are safe across goroutines and across processes: a file lock
// serializes concurrent fetches of the same asset, and the asset is written
// to a temporary file and renamed into place only once complete, so a cached
// file is always whole.
package hub

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultDirCreationPerm is used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0755)

// Cache downloads and stores remote assets under a root directory.
type Cache struct {
	dir       string
	client    *http.Client
	authToken string
}

// New creates a Cache rooted at dir. The directory is created lazily on the
// first download.
func New(dir string) *Cache {
	return &Cache{
		dir:    dir,
		client: http.DefaultClient,
	}
}

// WithAuthToken sets a bearer token sent with every request (e.g. a
// HuggingFace hub token for gated assets). It returns the modified Cache.
func (c *Cache) WithAuthToken(token string) *Cache {
	c.authToken = token
	return c
}

// WithClient sets the HTTP client used for downloads. It returns the modified Cache.
func (c *Cache) WithClient(client *http.Client) *Cache {
	c.client = client
	return c
}

// Path returns the local path the asset name maps to, whether or not it has
// been downloaded yet.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Download fetches url into the cache under name and returns the local path.
//
// If the file already exists it is assumed to have been correctly downloaded
// and is returned immediately; use ForceDownload to re-fetch. A lock file
// coordinates multiple processes downloading the same asset at the same time.
func (c *Cache) Download(ctx context.Context, url, name string) (string, error) {
	return c.download(ctx, url, name, false)
}

// ForceDownload is Download, but re-fetches even when the file already exists.
func (c *Cache) ForceDownload(ctx context.Context, url, name string) (string, error) {
	return c.download(ctx, url, name, true)
}

func (c *Cache) download(ctx context.Context, url, name string, force bool) (string, error) {
	filePath := c.Path(name)
	if fileExists(filePath) {
		if !force {
			return filePath, nil
		}
		if err := os.Remove(filePath); err != nil {
			return "", errors.Wrapf(err, "failed to remove %q while force-downloading %q", filePath, url)
		}
	}

	// Checks whether context has already been cancelled, and exit immediately.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	// Lock file to avoid parallel downloads of the same asset.
	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(ctx, lockPath, func() {
		if fileExists(filePath) {
			// Some concurrent other process (or goroutine) already downloaded the file.
			return
		}
		mainErr = c.fetchToFile(ctx, url, filePath)
		if mainErr != nil {
			return
		}
		// File exists now, the lock file has served its purpose.
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("error removing lock file %q: %v", lockPath, err)
		}
	})
	if mainErr != nil {
		return "", mainErr
	}
	if errLock != nil {
		return "", errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return filePath, nil
}

// fetchToFile downloads url into filePath through a uniquely named temporary
// file, renamed into place only on success.
func (c *Cache) fetchToFile(ctx context.Context, url, filePath string) error {
	tmpPath := filePath + "." + uuid.NewString() + ".downloading"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for download in %q", tmpPath)
	}
	var tmpFileClosed bool
	defer func() {
		// If we exit with an error, make sure to close and remove the unfinished temporary file.
		if !tmpFileClosed {
			if err := tmpFile.Close(); err != nil {
				klog.Warningf("failed closing temporary file %q: %v", tmpPath, err)
			}
			if err := os.Remove(tmpPath); err != nil {
				klog.Warningf("failed removing temporary file %q: %v", tmpPath, err)
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %q", url)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "while downloading %q to %q", url, tmpPath)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading %q: unexpected status %s", url, resp.Status)
	}

	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return errors.Wrapf(err, "while downloading %q to %q", url, tmpPath)
	}
	klog.V(1).Infof("downloaded %q (%d bytes) to %q", url, n, tmpPath)

	// Download succeeded, move to our target location.
	tmpFileClosed = true
	if err := tmpFile.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary download file %q", tmpPath)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
	}
	return nil
}

// execOnFileLock opens the lockPath file (or creates it if it doesn't yet
// exist), locks it, and executes fn. If lockPath is already locked it polls
// with a 1 to 2 seconds period (randomly) until it acquires the lock or the
// context is cancelled.
//
// lockPath is not removed. It's safe to remove it from fn if one knows that
// no new calls to execOnFileLock with the same lockPath are going to be made.
func execOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)

	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * time.Duration(1000+rand.Intn(1000))):
		}
	}

	// Clean up in a deferred function, so it happens even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Warningf("error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()
	return
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
