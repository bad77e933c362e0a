package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/catalogcache/transport"
)

// RESTRepository maps repository calls onto the catalog REST API:
//
//	GET    /products?limit=0[&sortBy=&order=]
//	GET    /products/search?q=<text>&limit=0[&sortBy=&order=]
//	GET    /products/{id}
//	POST   /products/add
//	PUT    /products/{id}
//	DELETE /products/{id}
//
// limit=0 requests the unbounded page, so Total matches len(Products).
type RESTRepository struct {
	c *transport.Client
}

var _ Repository = (*RESTRepository)(nil)

func NewRESTRepository(c *transport.Client) *RESTRepository {
	return &RESTRepository{c: c}
}

func (r *RESTRepository) List(ctx context.Context, sort SortSpec) (ProductsResponse, error) {
	var out ProductsResponse
	err := r.c.Get(ctx, "/products", listQuery(sort), &out)
	return out, err
}

func (r *RESTRepository) Search(ctx context.Context, query string, sort SortSpec) (ProductsResponse, error) {
	var out ProductsResponse
	q := strings.TrimSpace(query)
	if q == "" {
		return out, ErrEmptyQuery
	}
	vals := listQuery(sort)
	vals.Set("q", q)
	err := r.c.Get(ctx, "/products/search", vals, &out)
	return out, err
}

func (r *RESTRepository) ByID(ctx context.Context, id int) (Product, error) {
	var out Product
	err := r.c.Get(ctx, "/products/"+strconv.Itoa(id), nil, &out)
	return out, err
}

func (r *RESTRepository) Create(ctx context.Context, in CreateProductInput) (Product, error) {
	var out Product
	err := r.c.Post(ctx, "/products/add", in, &out)
	return out, err
}

func (r *RESTRepository) Update(ctx context.Context, id int, in UpdateProductInput) (Product, error) {
	var out Product
	err := r.c.Put(ctx, "/products/"+strconv.Itoa(id), in, &out)
	return out, err
}

func (r *RESTRepository) Delete(ctx context.Context, id int) (DeleteResult, error) {
	var out DeleteResult
	err := r.c.Delete(ctx, "/products/"+strconv.Itoa(id), &out)
	if err != nil {
		return out, err
	}
	if out.ID != id {
		return out, fmt.Errorf("catalog: delete confirmation for id %d, expected %d", out.ID, id)
	}
	return out, nil
}

func listQuery(sort SortSpec) url.Values {
	vals := url.Values{}
	vals.Set("limit", "0")
	if sort.Applied() {
		vals.Set("sortBy", string(sort.Field))
		vals.Set("order", string(sort.Order))
	}
	return vals
}
