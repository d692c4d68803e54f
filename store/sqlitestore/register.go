package sqlitestore

import (
	"context"
	"strings"

	"github.com/threadkeep/threadkeep/datalayer"
	"github.com/threadkeep/threadkeep/store"
)

func init() {
	store.Register("sqlite", func(_ context.Context, opts store.Options) (datalayer.DataLayer, error) {
		path := strings.TrimPrefix(strings.TrimSpace(opts.URL), "sqlite://")
		return Open(Options{
			Path:             path,
			Logger:           opts.Logger,
			DebugURLTemplate: opts.DebugURLTemplate,
		})
	})
}
