// Command seed-db populates the database with demo products, coupons, users,
// and API keys for local development and testing.
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
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-backend/internal/storage/postgres"
)

type productJSON struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int32           `json:"stock"`
}

// Stable IDs so repeated seeding upserts instead of duplicating.
var (
	demoUserID  = uuid.MustParse("b7a6e6a0-0000-4000-8000-000000000001")
	adminUserID = uuid.MustParse("b7a6e6a0-0000-4000-8000-000000000002")
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		adminAPIKey  string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "customer API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&adminAPIKey, "admin-api-key", "", "admin API key to seed (or STORE_SEED_ADMIN_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if adminAPIKey == "" {
		adminAPIKey = os.Getenv("STORE_SEED_ADMIN_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, adminAPIKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, adminAPIKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, demoUserID, "Demo customer key", apiKey, pepper, false); err != nil {
		return errors.Wrap(err, "seed customer api key")
	}
	if adminAPIKey != "" {
		if err := seedAPIKey(ctx, pool, adminUserID, "Admin key", adminAPIKey, pepper, true); err != nil {
			return errors.Wrap(err, "seed admin api key")
		}
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, stock)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, stock = $4`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.Stock); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID.String()), slog.String("name", p.Name))
	}

	return nil
}

const upsertUserSQL = `
INSERT INTO users (id, email)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET email = $2`

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo users")

	users := []struct {
		id    uuid.UUID
		email string
	}{
		{demoUserID, "customer@example.com"},
		{adminUserID, "admin@example.com"},
	}
	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL, u.id, u.email); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.email)
		}
	}
	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (code, discount_type, discount_value, valid_from, valid_to, min_cart_value, active, usage_limit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO UPDATE SET
    discount_type = $2, discount_value = $3, valid_from = $4, valid_to = $5,
    min_cart_value = $6, active = $7, usage_limit = $8`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	now := time.Now().UTC()
	year := now.AddDate(1, 0, 0)

	type couponSeed struct {
		code         string
		discountType string
		value        decimal.Decimal
		minCart      decimal.Decimal
		usageLimit   *int32
	}
	limit100 := int32(100)
	limit5 := int32(5)
	coupons := []couponSeed{
		{code: "WELCOME10", discountType: "percent", value: decimal.NewFromInt(10), minCart: decimal.Zero},
		{code: "SAVE20", discountType: "percent", value: decimal.NewFromInt(20), minCart: decimal.NewFromInt(50)},
		{code: "FIVEBUCKS", discountType: "fixed", value: decimal.NewFromInt(5), minCart: decimal.NewFromInt(25), usageLimit: &limit100},
		{code: "FIRSTFIVE", discountType: "percent", value: decimal.NewFromInt(10), minCart: decimal.Zero, usageLimit: &limit5},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.value, now, year, c.minCart, true, c.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}

	return nil
}

const upsertAPIKeySQL = `
INSERT INTO api_keys (key_hash, name, user_id, is_admin, active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (key_hash) DO UPDATE SET name = $2, user_id = $3, is_admin = $4, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, name, key, pepper string, admin bool) error {
	slog.Info("seeding API key", slog.String("name", name))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, keyHash, name, userID, admin); err != nil {
		return errors.Wrapf(err, "upsert API key %s", name)
	}

	slog.Info("upserted API key", slog.String("name", name), slog.Bool("admin", admin))
	return nil
}
