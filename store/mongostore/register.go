package mongostore

import (
	"context"

	"github.com/threadkeep/threadkeep/datalayer"
	"github.com/threadkeep/threadkeep/store"
)

func init() {
	store.Register("mongo", func(ctx context.Context, opts store.Options) (datalayer.DataLayer, error) {
		return Open(ctx, Options{
			URL:              opts.URL,
			DBName:           opts.DBName,
			Logger:           opts.Logger,
			DebugURLTemplate: opts.DebugURLTemplate,
		})
	})
}
