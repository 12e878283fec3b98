package veracode

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

const assetsQuery = `
query FetchAssets($pageNumber: Int!, $pageSize: Int!) {
  assets(
    queryFilter: {filter: {operands: []}}
    pageNumber: $pageNumber
    pageSize: $pageSize
  ) {
    pageData {
      id
      name
      assetTypeLabel
      uri
    }
  }
}
`

type assetsData struct {
	Assets struct {
		PageData []reconciler.Asset `json:"pageData"`
	} `json:"assets"`
}

// Catalog reads assets from the risk-manager GraphQL API.
type Catalog struct {
	querier Querier
	logger  *zap.Logger
}

type CatalogOption func(*Catalog)

func CatalogWithLogger(logger *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

func NewCatalog(querier Querier, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		querier: querier,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage returns one page of assets. A full page means more may follow.
func (c *Catalog) FetchPage(ctx context.Context, pageNumber int, pageSize int) (reconciler.Page, error) {
	c.logger.Info("Fetching assets",
		zap.Int("page_number", pageNumber),
		zap.Int("page_size", pageSize),
	)

	var data assetsData
	err := c.querier.Query(ctx, assetsQuery, map[string]any{
		"pageNumber": pageNumber,
		"pageSize":   pageSize,
	}, &data)
	if err != nil {
		qe := &reconciler.QueryError{Page: pageNumber, Err: err}
		var gqlErr *GraphQLError
		if errors.As(err, &gqlErr) {
			qe.Messages = gqlErr.Messages
		}
		return reconciler.Page{}, qe
	}

	assets := data.Assets.PageData
	c.logger.Info("Fetched assets",
		zap.Int("page_number", pageNumber),
		zap.Int("count", len(assets)),
	)

	// The service is assumed to honor the requested pageSize. A service
	// capping pages below it looks like a short final page and ends the scan
	// early, so keep page_size at or under the service maximum.
	return reconciler.Page{
		Number:  pageNumber,
		Assets:  assets,
		HasMore: pageSize > 0 && len(assets) == pageSize,
	}, nil
}
