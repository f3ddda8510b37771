package serve

import (
	"context"
	"testing"

	"github.com/1homsi/importrisk/internal/app/apptest"
)

func TestRunStopsWhenCancelled(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	a := apptest.New(t, apptest.Registry{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, a); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
