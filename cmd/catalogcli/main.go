// catalogcli is a minimal admin console against the catalog API, wired the
// same way a UI session would be: one store, one console, reads through the
// cache, mutations patching it.
//
// Configuration comes from the environment (optionally a .env file):
//
//	CATALOG_BASE_URL  API base URL (default https://dummyjson.com)
//	CATALOG_ROLE      Manager | Editor | Viewer (default Manager)
//
// usage:
//
//	catalogcli list [-q text] [-sort price|stock] [-order asc|desc]
//	catalogcli get <id>
//	catalogcli create -title t -category c -description d [-price n] [-stock n]
//	catalogcli update <id> [-title t] [-price n] [-stock n]
//	catalogcli delete <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cc "github.com/unkn0wn-root/catalogcache"
	"github.com/unkn0wn-root/catalogcache/catalog"
	"github.com/unkn0wn-root/catalogcache/console"
	zaplog "github.com/unkn0wn-root/catalogcache/log/zap"
	"github.com/unkn0wn-root/catalogcache/provider/ristretto"
	"github.com/unkn0wn-root/catalogcache/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "catalogcli:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command (list|get|create|update|delete)")
	}

	_ = godotenv.Load() // .env is optional

	zl, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer zl.Sync()
	logger := zaplog.ZapLogger{L: zl}

	baseURL := os.Getenv("CATALOG_BASE_URL")
	if baseURL == "" {
		baseURL = "https://dummyjson.com"
	}
	role := catalog.Role(os.Getenv("CATALOG_ROLE"))
	if role == "" {
		role = catalog.RoleManager
	}
	perms := catalog.PermissionsFor(role)

	client, err := transport.NewClient(transport.Config{BaseURL: baseURL})
	if err != nil {
		return err
	}

	prov, err := ristretto.New(ristretto.Default())
	if err != nil {
		return err
	}
	store, err := cc.New(cc.Options{Provider: prov, Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	con, err := console.New(console.Config{
		Store:      store,
		Repository: catalog.NewRESTRepository(client),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd := args[0]; cmd {
	case "list":
		return listCmd(ctx, con, args[1:])
	case "get":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		p, err := con.Product(ctx, id)
		if err != nil {
			return err
		}
		printProduct(p)
		return nil
	case "create":
		if !perms.CanCreate {
			return fmt.Errorf("role %s cannot create products", role)
		}
		return createCmd(ctx, con, args[1:])
	case "update":
		if !perms.CanEdit {
			return fmt.Errorf("role %s cannot edit products", role)
		}
		return updateCmd(ctx, con, args[1:])
	case "delete":
		if !perms.CanDelete {
			return fmt.Errorf("role %s cannot delete products", role)
		}
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		res, err := con.Delete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("deleted product %d\n", res.ID)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func listCmd(ctx context.Context, con *console.Console, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	q := fs.String("q", "", "search text")
	sortBy := fs.String("sort", "", "sort field (price|stock)")
	order := fs.String("order", "", "sort direction (asc|desc)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := con.Products(ctx, *q, catalog.SortSpec{
		Field: catalog.SortField(*sortBy),
		Order: catalog.SortOrder(*order),
	})
	if err != nil {
		return err
	}
	for _, p := range res.Products {
		fmt.Printf("%6d  %-40s %10.2f  stock %d\n", p.ID, p.Title, p.Price, p.Stock)
	}
	fmt.Printf("total: %d\n", res.Total)
	return nil
}

func createCmd(ctx context.Context, con *console.Console, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	title := fs.String("title", "", "product title")
	category := fs.String("category", "", "category")
	description := fs.String("description", "", "description")
	price := fs.Float64("price", 0, "price")
	stock := fs.Int("stock", 0, "stock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := con.Create(ctx, catalog.CreateProductInput{
		Title:       *title,
		Category:    *category,
		Description: *description,
		Price:       *price,
		Stock:       *stock,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created product %d\n", p.ID)
	return nil
}

func updateCmd(ctx context.Context, con *console.Console, args []string) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	title := fs.String("title", "", "new title")
	price := fs.Float64("price", -1, "new price")
	stock := fs.Int("stock", -1, "new stock")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var in catalog.UpdateProductInput
	if *title != "" {
		in.Title = title
	}
	if *price >= 0 {
		in.Price = price
	}
	if *stock >= 0 {
		in.Stock = stock
	}
	if in.Empty() {
		return fmt.Errorf("nothing to update")
	}

	p, err := con.Update(ctx, id, in)
	if err != nil {
		return err
	}
	printProduct(p)
	return nil
}

func idArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing product id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q", args[0])
	}
	return id, nil
}

func printProduct(p catalog.Product) {
	fmt.Printf("id:          %d\n", p.ID)
	fmt.Printf("title:       %s\n", p.Title)
	fmt.Printf("category:    %s\n", p.Category)
	fmt.Printf("price:       %.2f\n", p.Price)
	fmt.Printf("stock:       %d\n", p.Stock)
	if p.Brand != nil {
		fmt.Printf("brand:       %s\n", *p.Brand)
	}
	if p.Rating != nil {
		fmt.Printf("rating:      %.2f\n", *p.Rating)
	}
	fmt.Printf("description: %s\n", p.Description)
}
