// Command seed-db loads the demo catalog and a staff key into PostgreSQL so a
// fresh deployment is immediately usable.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/auth"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/repository"
)

type productJSON struct {
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	StockQuantity int             `json:"stock_quantity"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"image_url"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		staffKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&staffKey, "staff-key", "", "staff key to seed (or RETAIL_SEED_STAFF_KEY env)")
	flag.StringVar(&pepper, "staff-key-pepper", "", "HMAC pepper for staff key hashing (or RETAIL_STAFF_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if staffKey == "" {
		staffKey = os.Getenv("RETAIL_SEED_STAFF_KEY")
	}
	if staffKey == "" {
		slog.Error("staff key is required: set --staff-key or RETAIL_SEED_STAFF_KEY")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("RETAIL_STAFF_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, staffKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, staffKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewCatalogRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedStaffKey(ctx, repository.NewStaffKeyRepository(pool), staffKey, pepper); err != nil {
		return errors.Wrap(err, "seed staff key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.CatalogRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	products := make([]catalog.Product, len(raw))
	for i, p := range raw {
		products[i] = catalog.Product{
			Barcode:       p.Barcode,
			Name:          p.Name,
			Brand:         p.Brand,
			Category:      p.Category,
			Price:         p.Price,
			TaxRate:       p.TaxRate,
			StockQuantity: p.StockQuantity,
			Description:   p.Description,
			ImageURL:      p.ImageURL,
		}
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	written, err := repo.UpsertMany(ctx, products)
	if err != nil {
		return errors.Wrap(err, "upsert products")
	}

	slog.Info("upserted products", slog.Int("written", written))
	return nil
}

func seedStaffKey(ctx context.Context, repo *repository.StaffKeyRepository, staffKey, pepper string) error {
	slog.Info("seeding default staff key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(staffKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, &auth.StaffKeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		Name:    "Default store manager key",
		Scopes:  []string{auth.ScopeCatalogWrite, auth.ScopeAnalyticsRead},
	}); err != nil {
		return errors.Wrap(err, "upsert default staff key")
	}

	slog.Info("upserted staff key", slog.String("id", "default"))
	return nil
}
