package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
)

// FilePersister stores snapshots as JSON files in a local directory
type FilePersister struct {
	dir string
}

// NewFilePersister creates a persister writing into dir
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{dir: dir}
}

// Load reads both files. It returns (nil, nil) when neither file exists.
func (f *FilePersister) Load(ctx context.Context) (*model.Snapshot, error) {
	shop, shopErr := os.ReadFile(filepath.Join(f.dir, ShopFileName))
	blog, blogErr := os.ReadFile(filepath.Join(f.dir, BlogFileName))
	if errors.Is(shopErr, fs.ErrNotExist) && errors.Is(blogErr, fs.ErrNotExist) {
		return nil, nil
	}

	snapshot := &model.Snapshot{}
	switch {
	case shopErr == nil:
		products, err := decodeShop(shop)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid shop file", goerr.V("dir", f.dir))
		}
		snapshot.Products = products
	case !errors.Is(shopErr, fs.ErrNotExist):
		return nil, goerr.Wrap(shopErr, "failed to read shop file", goerr.V("dir", f.dir))
	}

	switch {
	case blogErr == nil:
		posts, err := decodeBlog(blog)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid blog file", goerr.V("dir", f.dir))
		}
		snapshot.BlogPosts = posts
	case !errors.Is(blogErr, fs.ErrNotExist):
		return nil, goerr.Wrap(blogErr, "failed to read blog file", goerr.V("dir", f.dir))
	}

	return snapshot, nil
}

// Save writes both files, creating the directory when needed
func (f *FilePersister) Save(ctx context.Context, snapshot *model.Snapshot) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create data directory", goerr.V("dir", f.dir))
	}

	shop, err := encodeShop(snapshot.Products)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(f.dir, ShopFileName), shop); err != nil {
		return err
	}

	blog, err := encodeBlog(snapshot.BlogPosts)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(f.dir, BlogFileName), blog)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return goerr.Wrap(err, "failed to write file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
	}
	return nil
}

var _ interfaces.Persister = (*FilePersister)(nil)
