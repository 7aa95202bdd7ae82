// Package blob stores snapshots in a gocloud.dev bucket.  Supported bucket URLs are
// file:///dir, mem:// and gs://bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"

	"github.com/blang/semver"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/storage"
)

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		craft.Errorf("Unable to make semver in blob: %v\n", err)
	}
	storage.RegisterEngine(Engine{"blob", "gocloud.dev bucket", ver})
}

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore opens the bucket at config.Path, or an in-memory bucket if InMemory is set.
// Directories for file:// buckets are created as needed.
func (e Engine) NewStore(config storage.StoreConfig) (storage.Store, bool, error) {
	ref := config.Path
	if config.InMemory {
		ref = "mem://"
	}
	if ref == "" {
		return nil, false, fmt.Errorf("%q must be specified for blob configuration", "path")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, false, fmt.Errorf("bad bucket URL %q: %v", ref, err)
	}
	var created bool
	if u.Scheme == "file" {
		if _, err := os.Stat(u.Path); os.IsNotExist(err) {
			created = true
			if err := os.MkdirAll(u.Path, 0755); err != nil {
				return nil, false, fmt.Errorf("can't make directory at %s: %v", u.Path, err)
			}
		}
	}

	bucket, err := blob.OpenBucket(context.Background(), ref)
	if err != nil {
		craft.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
		return nil, false, err
	}
	if config.Prefix != "" {
		bucket = blob.PrefixedBucket(bucket, config.Prefix)
	}
	return &Store{ref: ref, bucket: bucket}, created || u.Scheme == "mem", nil
}

// Store is a storage.Store backed by a bucket.
type Store struct {
	ref    string
	bucket *blob.Bucket
}

func (s *Store) String() string {
	return fmt.Sprintf("bucket @ %s", s.ref)
}

func (s *Store) notFound(key string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: %q in %s", storage.ErrNotFound, key, s)
	}
	return err
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.bucket.WriteAll(ctx, key, value, nil)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, s.notFound(key, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		return s.notFound(key, err)
	}
	return nil
}

func (s *Store) Names(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !obj.IsDir {
			names = append(names, obj.Key)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}
