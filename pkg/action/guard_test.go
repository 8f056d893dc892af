package action_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/huddle/pkg/action"
	"github.com/m-mizutani/huddle/pkg/model"
	"github.com/m-mizutani/huddle/pkg/repository"
)

const pricePolicy = `package huddle.action

default allow := false

allow if {
	input.action.type != "CREATE_PRODUCT"
}

allow if {
	input.action.type == "CREATE_PRODUCT"
	input.action.data.price < 1000
}
`

func TestGuard(t *testing.T) {
	ctx := context.Background()
	guard, err := action.NewGuard(ctx, "price.rego", pricePolicy)
	gt.NoError(t, err)

	gt.NoError(t, guard.Check(ctx, model.NewCreateProduct(model.ProductInput{Name: "Mug", Price: 10}), "ProductManager"))
	gt.NoError(t, guard.Check(ctx, model.NewCreatePost(model.PostInput{Title: "t", Content: "c"}), "ContentCreator"))

	err = guard.Check(ctx, model.NewCreateProduct(model.ProductInput{Name: "Yacht", Price: 5000}), "ProductManager")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, action.ErrActionDenied))
}

func TestGuardUndefinedDecision(t *testing.T) {
	ctx := context.Background()
	guard, err := action.NewGuard(ctx, "empty.rego", "package huddle.action\n")
	gt.NoError(t, err)

	err = guard.Check(ctx, model.NewCreatePost(model.PostInput{Title: "t", Content: "c"}), "ContentCreator")
	gt.True(t, errors.Is(err, action.ErrActionDenied))
}

func TestLoadGuard(t *testing.T) {
	ctx := context.Background()

	_, err := action.LoadGuard(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	gt.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.rego")
	gt.NoError(t, os.WriteFile(path, []byte("package huddle.action\nallow if {"), 0644))
	_, err = action.LoadGuard(ctx, path)
	gt.Error(t, err)
}

func TestExecutorWithGuard(t *testing.T) {
	ctx := context.Background()
	guard, err := action.NewGuard(ctx, "price.rego", pricePolicy)
	gt.NoError(t, err)

	store := repository.NewMemory()
	exec := action.NewExecutor(store, action.WithGuard(guard))
	results := exec.Execute(ctx, []model.Action{
		model.NewCreateProduct(model.ProductInput{Name: "Yacht", Price: 5000}),
		model.NewCreateProduct(model.ProductInput{Name: "Mug", Price: 10}),
	}, "ProductManager")

	gt.A(t, results).Length(2)
	gt.S(t, results[0]).HasPrefix("❌ Failed to execute CREATE_PRODUCT: ")
	gt.S(t, results[0]).Contains("denied")
	gt.Equal(t, results[1], "✅ Created product: Mug ($10)")
}
