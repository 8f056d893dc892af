package interfaces

import (
	"context"

	"github.com/m-mizutani/huddle/pkg/model"
)

// DataStore owns product and blog post records. Update methods return (nil, nil) when the
// record does not exist.
type DataStore interface {
	AddProduct(ctx context.Context, product *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, id model.ProductID, updates map[string]any) (*model.Product, error)
	GetProduct(ctx context.Context, id model.ProductID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]*model.Product, error)

	AddBlogPost(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error)
	UpdateBlogPost(ctx context.Context, id model.BlogPostID, updates map[string]any) (*model.BlogPost, error)
	GetBlogPost(ctx context.Context, id model.BlogPostID) (*model.BlogPost, error)
	ListBlogPosts(ctx context.Context) ([]*model.BlogPost, error)

	Stats(ctx context.Context) (*model.Stats, error)
}

// Persister stores and restores the whole data store
type Persister interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snapshot *model.Snapshot) error
}
