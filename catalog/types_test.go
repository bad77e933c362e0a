package catalog

import (
	"errors"
	"testing"
)

func TestSortSpecApplied(t *testing.T) {
	cases := []struct {
		name string
		spec SortSpec
		want bool
	}{
		{"empty", SortSpec{}, false},
		{"price asc", SortSpec{Field: SortByPrice, Order: OrderAsc}, true},
		{"stock desc", SortSpec{Field: SortByStock, Order: OrderDesc}, true},
		{"field only", SortSpec{Field: SortByPrice}, false},
		{"order only", SortSpec{Order: OrderDesc}, false},
		{"unknown field", SortSpec{Field: "title", Order: OrderAsc}, false},
		{"unknown order", SortSpec{Field: SortByPrice, Order: "up"}, false},
	}
	for _, tc := range cases {
		if got := tc.spec.Applied(); got != tc.want {
			t.Errorf("%s: Applied() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCreateProductInputValidate(t *testing.T) {
	valid := CreateProductInput{
		Title:       "Phone",
		Description: "A phone",
		Category:    "electronics",
		Price:       99.9,
		Stock:       10,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateProductInput)
	}{
		{"blank title", func(in *CreateProductInput) { in.Title = "   " }},
		{"blank category", func(in *CreateProductInput) { in.Category = "" }},
		{"blank description", func(in *CreateProductInput) { in.Description = "\t" }},
		{"negative price", func(in *CreateProductInput) { in.Price = -0.01 }},
		{"negative stock", func(in *CreateProductInput) { in.Stock = -1 }},
	}
	for _, tc := range cases {
		in := valid
		tc.mutate(&in)
		if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidInput", tc.name, err)
		}
	}

	// zero price and stock are legal
	free := valid
	free.Price, free.Stock = 0, 0
	if err := free.Validate(); err != nil {
		t.Errorf("zero price/stock rejected: %v", err)
	}
}

func TestUpdateProductInputValidate(t *testing.T) {
	s := func(v string) *string { return &v }
	f := func(v float64) *float64 { return &v }
	n := func(v int) *int { return &v }

	if err := (UpdateProductInput{}).Validate(); err != nil {
		t.Fatalf("empty update should validate: %v", err)
	}
	if !(UpdateProductInput{}).Empty() {
		t.Fatal("empty update should report Empty")
	}

	ok := UpdateProductInput{Title: s("New"), Price: f(5), Stock: n(0)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if ok.Empty() {
		t.Fatal("non-empty update reported Empty")
	}

	cases := []struct {
		name string
		in   UpdateProductInput
	}{
		{"blank title", UpdateProductInput{Title: s("  ")}},
		{"blank category", UpdateProductInput{Category: s("")}},
		{"blank description", UpdateProductInput{Description: s(" ")}},
		{"negative price", UpdateProductInput{Price: f(-1)}},
		{"negative stock", UpdateProductInput{Stock: n(-5)}},
	}
	for _, tc := range cases {
		if err := tc.in.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidInput", tc.name, err)
		}
	}
}

func TestPermissionsFor(t *testing.T) {
	cases := []struct {
		role Role
		want Permissions
	}{
		{RoleManager, Permissions{CanCreate: true, CanEdit: true, CanDelete: true}},
		{RoleEditor, Permissions{CanEdit: true}},
		{RoleViewer, Permissions{ReadOnly: true}},
		{Role("intern"), Permissions{}},
	}
	for _, tc := range cases {
		if got := PermissionsFor(tc.role); got != tc.want {
			t.Errorf("PermissionsFor(%s) = %+v, want %+v", tc.role, got, tc.want)
		}
	}
}
