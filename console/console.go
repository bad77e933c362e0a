// Package console coordinates the admin console's reads and mutations: reads
// go through the query cache, and every successful create/update/delete is
// followed by a synchronous patch of all affected cache entries, so list and
// detail views reflect the new state without a refetch round trip.
package console

import (
	"context"
	"errors"
	"strings"

	cc "github.com/unkn0wn-root/catalogcache"
	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/codec"
)

// ErrInvalidID is returned for non-positive product ids before any remote
// call is made.
var ErrInvalidID = errors.New("console: product id must be positive")

// Console is the coordinator. Construct one per session and share it; it is
// safe for concurrent use because the underlying store serializes cache
// passes.
type Console struct {
	repo    catalog.Repository
	store   *cc.Store
	lists   *cc.View[catalog.ProductsResponse]
	details *cc.View[catalog.Product]
	log     cc.Logger
}

type Config struct {
	// Required
	Store      *cc.Store
	Repository catalog.Repository

	Logger cc.Logger // if nil, logging is disabled

	// Snapshot codecs; nil => JSON.
	ListCodec   codec.Codec[catalog.ProductsResponse]
	DetailCodec codec.Codec[catalog.Product]
}

func New(cfg Config) (*Console, error) {
	if cfg.Store == nil {
		return nil, errors.New("console: store is required")
	}
	if cfg.Repository == nil {
		return nil, errors.New("console: repository is required")
	}

	lc := cfg.ListCodec
	if lc == nil {
		lc = codec.JSON[catalog.ProductsResponse]{}
	}
	dc := cfg.DetailCodec
	if dc == nil {
		dc = codec.JSON[catalog.Product]{}
	}

	c := &Console{
		repo:    cfg.Repository,
		store:   cfg.Store,
		lists:   cc.NewView[catalog.ProductsResponse](cfg.Store, cc.TagProducts, lc),
		details: cc.NewView[catalog.Product](cfg.Store, cc.TagProduct, dc),
	}
	c.log = cfg.Logger
	if c.log == nil {
		c.log = cc.NopLogger{}
	}
	return c, nil
}

// Store exposes the underlying query cache for subscriptions and state reads.
func (c *Console) Store() *cc.Store { return c.store }

// ListKey returns the cache key Products uses for the given parameters.
func (c *Console) ListKey(query string, sort catalog.SortSpec) cc.Key {
	field, order := sortParams(sort)
	return cc.ListKey(query, field, order)
}

// DetailKey returns the cache key Product uses for id.
func (c *Console) DetailKey(id int) cc.Key { return cc.DetailKey(id) }

// Products serves the list view. The query text is trimmed; empty text means
// the plain list endpoint, anything else the search endpoint. Each
// search/sort combination has its own cache slot.
func (c *Console) Products(ctx context.Context, query string, sort catalog.SortSpec) (catalog.ProductsResponse, error) {
	q := strings.TrimSpace(query)
	return c.lists.Fetch(ctx, c.ListKey(q, sort), func(ctx context.Context) (catalog.ProductsResponse, error) {
		if q == "" {
			return c.repo.List(ctx, sort)
		}
		return c.repo.Search(ctx, q, sort)
	})
}

// RefreshProducts forces a reload of one list slot (the manual retry /
// refresh action in the view layer).
func (c *Console) RefreshProducts(ctx context.Context, query string, sort catalog.SortSpec) (catalog.ProductsResponse, error) {
	q := strings.TrimSpace(query)
	return c.lists.Refetch(ctx, c.ListKey(q, sort), func(ctx context.Context) (catalog.ProductsResponse, error) {
		if q == "" {
			return c.repo.List(ctx, sort)
		}
		return c.repo.Search(ctx, q, sort)
	})
}

// Product serves the detail view for id.
func (c *Console) Product(ctx context.Context, id int) (catalog.Product, error) {
	if id <= 0 {
		return catalog.Product{}, ErrInvalidID
	}
	return c.details.Fetch(ctx, cc.DetailKey(id), func(ctx context.Context) (catalog.Product, error) {
		return c.repo.ByID(ctx, id)
	})
}

// Create validates the input, creates the record remotely, and on success
// prepends it to every populated list entry (bumping each total by one). A
// list already containing the id is left untouched, so applying the patch
// twice cannot duplicate the record. The new row sits at the head of every
// list regardless of its sort order; exact order returns on the next refetch.
// No detail entry is seeded - the first detail view fetches lazily.
//
// On any failure the cache is untouched and the error is returned unchanged.
func (c *Console) Create(ctx context.Context, in catalog.CreateProductInput) (catalog.Product, error) {
	if err := in.Validate(); err != nil {
		return catalog.Product{}, err
	}

	created, err := c.repo.Create(ctx, in)
	if err != nil {
		return catalog.Product{}, err
	}

	perr := c.lists.UpdateMatching(ctx, func(old catalog.ProductsResponse, ok bool) (catalog.ProductsResponse, bool) {
		if !ok {
			return old, false
		}
		for _, p := range old.Products {
			if p.ID == created.ID {
				return old, true
			}
		}
		return catalog.ProductsResponse{
			Products: append([]catalog.Product{created}, old.Products...),
			Total:    old.Total + 1,
		}, true
	})
	c.reportPatch("create", created.ID, perr)

	return created, nil
}

// Update applies a partial update remotely and on success overwrites the
// detail entry with the returned record and replaces the matching element in
// every populated list entry, preserving order and totals. Lists that do not
// contain the id are left byte-for-byte untouched.
func (c *Console) Update(ctx context.Context, id int, in catalog.UpdateProductInput) (catalog.Product, error) {
	if id <= 0 {
		return catalog.Product{}, ErrInvalidID
	}
	if err := in.Validate(); err != nil {
		return catalog.Product{}, err
	}

	updated, err := c.repo.Update(ctx, id, in)
	if err != nil {
		return catalog.Product{}, err
	}

	if werr := c.details.Write(ctx, cc.DetailKey(id), updated); werr != nil {
		c.reportPatch("update", id, werr)
	}

	perr := c.lists.UpdateMatching(ctx, func(old catalog.ProductsResponse, ok bool) (catalog.ProductsResponse, bool) {
		if !ok {
			return old, false
		}
		for i := range old.Products {
			if old.Products[i].ID == updated.ID {
				old.Products[i] = updated
			}
		}
		return old, true
	})
	c.reportPatch("update", id, perr)

	return updated, nil
}

// Delete removes the record remotely and on success drops the detail key
// outright (a later detail view refetches instead of seeing a stale or empty
// slot), filters the id out of every populated list entry with the total
// floored at zero, and clears any other detail entry whose payload carries
// the deleted id.
func (c *Console) Delete(ctx context.Context, id int) (catalog.DeleteResult, error) {
	if id <= 0 {
		return catalog.DeleteResult{}, ErrInvalidID
	}

	res, err := c.repo.Delete(ctx, id)
	if err != nil {
		return catalog.DeleteResult{}, err
	}

	if rerr := c.details.Remove(ctx, cc.DetailKey(id)); rerr != nil {
		c.reportPatch("delete", id, rerr)
	}

	perr := c.lists.UpdateMatching(ctx, func(old catalog.ProductsResponse, ok bool) (catalog.ProductsResponse, bool) {
		if !ok {
			return old, false
		}
		kept := make([]catalog.Product, 0, len(old.Products))
		for _, p := range old.Products {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		total := old.Total - 1
		if total < 0 {
			total = 0
		}
		return catalog.ProductsResponse{Products: kept, Total: total}, true
	})
	c.reportPatch("delete", id, perr)

	perr = c.details.UpdateMatching(ctx, func(old catalog.Product, ok bool) (catalog.Product, bool) {
		if !ok {
			return old, false
		}
		if old.ID == id {
			return catalog.Product{}, false
		}
		return old, true
	})
	c.reportPatch("delete", id, perr)

	return res, nil
}

// reportPatch logs snapshot-persistence failures. They are not surfaced to
// the caller: the mutation itself succeeded, and an unpersisted entry
// degrades to data-absent on its next read instead of going stale.
func (c *Console) reportPatch(op string, id int, err error) {
	if err == nil {
		return
	}
	c.log.Warn("cache patch incomplete", cc.Fields{"op": op, "id": id, "err": err})
}

func sortParams(sort catalog.SortSpec) (field, order string) {
	if !sort.Applied() {
		return "", ""
	}
	return string(sort.Field), string(sort.Order)
}
