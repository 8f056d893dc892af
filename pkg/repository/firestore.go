package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/huddle/pkg/interfaces"
	"github.com/m-mizutani/huddle/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionProducts  = "products"
	collectionBlogPosts = "blog_posts"
)

// FirestorePersister stores one document per product and blog post
type FirestorePersister struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore persister for the given project and database
func NewFirestore(ctx context.Context, projectID, databaseID string) (*FirestorePersister, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required for Firestore")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &FirestorePersister{client: client}, nil
}

// Close releases the client
func (f *FirestorePersister) Close() error {
	return f.client.Close()
}

// Load reads both collections. A missing database is treated as nothing stored.
func (f *FirestorePersister) Load(ctx context.Context) (*model.Snapshot, error) {
	products, err := loadCollection[model.Product](ctx, f.client.Collection(collectionProducts))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to load products")
	}
	posts, err := loadCollection[model.BlogPost](ctx, f.client.Collection(collectionBlogPosts))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load blog posts")
	}

	if len(products) == 0 && len(posts) == 0 {
		return nil, nil
	}
	return &model.Snapshot{Products: products, BlogPosts: posts}, nil
}

func loadCollection[T any](ctx context.Context, col *firestore.CollectionRef) ([]*T, error) {
	iter := col.Documents(ctx)
	defer iter.Stop()

	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("path", doc.Ref.Path))
		}
		out = append(out, &v)
	}
	return out, nil
}

// Save upserts every record of the snapshot
func (f *FirestorePersister) Save(ctx context.Context, snapshot *model.Snapshot) error {
	bw := f.client.BulkWriter(ctx)

	for _, p := range snapshot.Products {
		ref := f.client.Collection(collectionProducts).Doc(string(p.ID))
		if _, err := bw.Set(ref, p); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to queue product write", goerr.V("id", p.ID))
		}
	}
	for _, p := range snapshot.BlogPosts {
		ref := f.client.Collection(collectionBlogPosts).Doc(string(p.ID))
		if _, err := bw.Set(ref, p); err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to queue blog post write", goerr.V("id", p.ID))
		}
	}

	bw.End()
	return nil
}

var _ interfaces.Persister = (*FirestorePersister)(nil)
