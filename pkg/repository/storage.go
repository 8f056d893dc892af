package repository

import (
	"context"
	"errors"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/adapter"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
)

// StoragePersister stores snapshots as two objects in an object storage bucket
type StoragePersister struct {
	storage adapter.Storage
	prefix  string
}

// NewStoragePersister creates a persister writing objects under prefix
func NewStoragePersister(storage adapter.Storage, prefix string) *StoragePersister {
	return &StoragePersister{storage: storage, prefix: prefix}
}

func (s *StoragePersister) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Load reads both objects. It returns (nil, nil) when neither object exists.
func (s *StoragePersister) Load(ctx context.Context) (*model.Snapshot, error) {
	shop, shopErr := s.read(ctx, s.key(ShopFileName))
	blog, blogErr := s.read(ctx, s.key(BlogFileName))
	if errors.Is(shopErr, adapter.ErrObjectNotFound) && errors.Is(blogErr, adapter.ErrObjectNotFound) {
		return nil, nil
	}

	snapshot := &model.Snapshot{}
	switch {
	case shopErr == nil:
		products, err := decodeShop(shop)
		if err != nil {
			return nil, err
		}
		snapshot.Products = products
	case !errors.Is(shopErr, adapter.ErrObjectNotFound):
		return nil, shopErr
	}

	switch {
	case blogErr == nil:
		posts, err := decodeBlog(blog)
		if err != nil {
			return nil, err
		}
		snapshot.BlogPosts = posts
	case !errors.Is(blogErr, adapter.ErrObjectNotFound):
		return nil, blogErr
	}

	return snapshot, nil
}

// Save writes both objects
func (s *StoragePersister) Save(ctx context.Context, snapshot *model.Snapshot) error {
	shop, err := encodeShop(snapshot.Products)
	if err != nil {
		return err
	}
	if err := s.write(ctx, s.key(ShopFileName), shop); err != nil {
		return err
	}

	blog, err := encodeBlog(snapshot.BlogPosts)
	if err != nil {
		return err
	}
	return s.write(ctx, s.key(BlogFileName), blog)
}

func (s *StoragePersister) read(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}
	return data, nil
}

func (s *StoragePersister) write(ctx context.Context, key string, data []byte) error {
	writer, err := s.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", key))
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}

var _ interfaces.Persister = (*StoragePersister)(nil)
