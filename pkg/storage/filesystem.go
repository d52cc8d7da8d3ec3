package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

// FilesystemCollaborator stores each segment as a gzip'd gob file under a
// root directory, one file per storage key. It's the minimal "real"
// backend outside of tests, dependency-light enough that the driver's
// retry/backoff loop has something to exercise against transient I/O
// errors without standing up S3 or a test double.
type FilesystemCollaborator struct {
	root string
}

// NewFilesystemCollaborator creates root if absent and returns a
// collaborator rooted there.
func NewFilesystemCollaborator(root string) (*FilesystemCollaborator, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "create storage root")
	}
	return &FilesystemCollaborator{root: root}, nil
}

func (f *FilesystemCollaborator) path(key string) string {
	return filepath.Join(f.root, keyToFilename(key)+".seg.gz")
}

// keyToFilename percent-escapes the key (path separators included) so a
// key with slashes doesn't escape the storage root, and List can recover
// the original key from the file name.
func keyToFilename(key string) string {
	return url.PathEscape(key)
}

func (f *FilesystemCollaborator) Fetch(ctx context.Context, key string) (*segment.Segment, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, qerrors.Newf(qerrors.TypeStorageError, "filesystem collaborator: no segment stored for key %q", key)
		}
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "read segment file")
	}
	return decodeSegment(data)
}

func (f *FilesystemCollaborator) Write(ctx context.Context, key string, seg *segment.Segment) error {
	data, err := encodeSegment(seg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path(key), data, 0o644); err != nil {
		return qerrors.Wrap(err, qerrors.TypeStorageError, "write segment file")
	}
	return nil
}

func (f *FilesystemCollaborator) List(ctx context.Context) ([]segment.RangesAndKey, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "list storage root")
	}
	var out []segment.RangesAndKey
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".seg.gz") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(e.Name(), ".seg.gz"))
		if err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "decode storage key from file name")
		}
		seg, err := f.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		rak := segment.RangesAndKey{
			StorageKey: key,
			Rows:       seg.RowRange,
			Cols:       segment.ColRange{Start: 0, End: len(seg.Descriptor.Names)},
		}
		rak.TimeStart, rak.TimeEnd, rak.HasTimeRange = seg.TimeBounds()
		out = append(out, rak)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StorageKey < out[j].StorageKey })
	return out, nil
}

func (f *FilesystemCollaborator) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return qerrors.Wrap(err, qerrors.TypeStorageError, "delete segment file")
	}
	return nil
}

func (f *FilesystemCollaborator) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(f.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, qerrors.Wrap(err, qerrors.TypeStorageError, "stat segment file")
}
