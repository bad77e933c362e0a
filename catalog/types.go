// Package catalog holds the product domain model and the repository contract
// against the remote catalog API.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Product is one catalog record. The id is assigned by the server and
// immutable; every other field is mutable via update. Brand, Rating and
// Thumbnail are genuinely optional on the remote API, so they are pointers
// rather than zero-valued strings.
type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Brand       *string  `json:"brand,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
}

// ProductsResponse is the list envelope returned by list and search. Total
// may exceed len(Products) on a paginating server; this client requests an
// unbounded page (limit=0) and assumes it does not.
type ProductsResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// SortField and SortOrder are the closed sets the API accepts.
type SortField string

const (
	SortByPrice SortField = "price"
	SortByStock SortField = "stock"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortSpec is applied only when both halves are present and recognized;
// a partial or unknown spec means "no sort".
type SortSpec struct {
	Field SortField
	Order SortOrder
}

func (s SortSpec) Applied() bool {
	fieldOK := s.Field == SortByPrice || s.Field == SortByStock
	orderOK := s.Order == OrderAsc || s.Order == OrderDesc
	return fieldOK && orderOK
}

// ErrInvalidInput marks client-side validation failures. They never reach the
// repository: no remote call is made and the cache is untouched.
var ErrInvalidInput = errors.New("catalog: invalid input")

// CreateProductInput is the payload for creating a record. All fields except
// Brand and Thumbnail are required.
type CreateProductInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Brand       *string `json:"brand,omitempty"`
	Thumbnail   *string `json:"thumbnail,omitempty"`
}

func (in CreateProductInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	case in.Price < 0:
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidInput)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock must be non-negative", ErrInvalidInput)
	}
	return nil
}

// UpdateProductInput is a partial update: nil fields are left untouched by
// the server, which returns the full merged record.
type UpdateProductInput struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
}

func (in UpdateProductInput) Validate() error {
	switch {
	case in.Title != nil && strings.TrimSpace(*in.Title) == "":
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	case in.Category != nil && strings.TrimSpace(*in.Category) == "":
		return fmt.Errorf("%w: category cannot be empty", ErrInvalidInput)
	case in.Description != nil && strings.TrimSpace(*in.Description) == "":
		return fmt.Errorf("%w: description cannot be empty", ErrInvalidInput)
	case in.Price != nil && *in.Price < 0:
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidInput)
	case in.Stock != nil && *in.Stock < 0:
		return fmt.Errorf("%w: stock must be non-negative", ErrInvalidInput)
	}
	return nil
}

// Empty reports whether the update changes nothing.
func (in UpdateProductInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Category == nil &&
		in.Price == nil && in.Stock == nil && in.Brand == nil && in.Thumbnail == nil
}

// DeleteResult is the confirmation envelope for a delete.
type DeleteResult struct {
	ID int `json:"id"`
}
