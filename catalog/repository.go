package catalog

import (
	"context"
	"errors"
)

// ErrEmptyQuery is returned by Search when the trimmed query is empty;
// callers route empty searches to List instead.
var ErrEmptyQuery = errors.New("catalog: search query is empty")

// Repository is the typed surface over the remote catalog API. Pure
// request/response mapping, no state; implementations must not cache.
type Repository interface {
	List(ctx context.Context, sort SortSpec) (ProductsResponse, error)
	Search(ctx context.Context, query string, sort SortSpec) (ProductsResponse, error)
	ByID(ctx context.Context, id int) (Product, error)
	Create(ctx context.Context, in CreateProductInput) (Product, error)
	Update(ctx context.Context, id int, in UpdateProductInput) (Product, error)
	Delete(ctx context.Context, id int) (DeleteResult, error)
}
