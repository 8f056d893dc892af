package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/adapter"
)

func TestStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	key := "huddle-test/" + uuid.NewString() + ".json"
	w, err := client.Put(ctx, key)
	gt.NoError(t, err)
	_, err = w.Write([]byte(`{"products":[]}`))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := client.Get(ctx, key)
	gt.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.Equal(t, string(data), `{"products":[]}`)

	_, err = client.Get(ctx, "huddle-test/"+uuid.NewString())
	gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))
}

func TestErrObjectNotFoundWrapped(t *testing.T) {
	err := goerr.Wrap(adapter.ErrObjectNotFound, "object does not exist", goerr.V("key", "a/b.json"))
	gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))
	gt.S(t, err.Error()).Contains("object not found")
}
