package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"hobbydork/internal/config"
	"hobbydork/internal/models"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func main() {
	drop := flag.Bool("drop", false, "drop all tables before creating them")
	seed := flag.Bool("seed", false, "insert sample marketplace data")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if *drop {
		log.Println("Dropping tables...")
		dropTables(ctx, db)
	}

	log.Println("Creating tables...")
	createTables(ctx, db)

	if *seed {
		log.Println("Seeding sample data...")
		seedData(ctx, db)
	}

	log.Println("Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.OrderAuditEntry)(nil),
		(*models.ErrorLogEntry)(nil),
		(*models.Bid)(nil),
		(*models.BlindBidAuction)(nil),
		(*models.Order)(nil),
		(*models.Listing)(nil),
		(*models.SpotlightSlot)(nil),
		(*models.SellerApplication)(nil),
		(*models.TierChange)(nil),
		(*models.Store)(nil),
		(*models.User)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Store)(nil),
		(*models.TierChange)(nil),
		(*models.SellerApplication)(nil),
		(*models.SpotlightSlot)(nil),
		(*models.Listing)(nil),
		(*models.Order)(nil),
		(*models.BlindBidAuction)(nil),
		(*models.Bid)(nil),
		(*models.OrderAuditEntry)(nil),
		(*models.ErrorLogEntry)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now()

	users := []models.User{
		{
			UserID:      "user_admin",
			Email:       "admin@hobbydork.test",
			DisplayName: "Admin",
			IsAdmin:     true,
			CreatedAt:   now,
		},
		{
			UserID:       "user_dan",
			Email:        "dan@hobbydork.test",
			DisplayName:  "Dan",
			IsSeller:     true,
			SellerStatus: models.SellerActive,
			SellerTier:   models.TierGold,
			CreatedAt:    now,
		},
		{
			UserID:      "user_mia",
			Email:       "mia@hobbydork.test",
			DisplayName: "Mia",
			CreatedAt:   now,
		},
	}
	_, _ = db.NewInsert().Model(&users).Exec(ctx)

	store := models.Store{
		StoreID:     "dans-card-shack",
		OwnerUID:    "user_dan",
		DisplayName: "Dan's Card Shack",
		CreatedAt:   now,
	}
	_, _ = db.NewInsert().Model(&store).Exec(ctx)

	listing := models.Listing{
		ListingID:   "listing_seed_001",
		StoreID:     "dans-card-shack",
		SellerUID:   "user_dan",
		Title:       "1st Edition Holo Charizard",
		Description: "PSA 8, pack fresh look.",
		Category:    "trading-cards",
		PriceCents:  125000,
		Status:      models.ListingActive,
		CreatedAt:   now,
	}
	_, _ = db.NewInsert().Model(&listing).Exec(ctx)

	auction := models.BlindBidAuction{
		AuctionID:       "auction_seed_001",
		SellerUID:       "user_dan",
		Title:           "Sealed Base Set Booster Box",
		Description:     "Blind bids only, highest offer wins.",
		Status:          models.AuctionOpen,
		FlatFeePaid:     true,
		SellerTier:      models.TierGold,
		AuctionFeeCents: 299,
		CreatedAt:       now,
		EndsAt:          now.Add(24 * time.Hour),
	}
	_, _ = db.NewInsert().Model(&auction).Exec(ctx)
}
