// Command fake_data seeds users and flood reports for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/patrickwarner/floodwatch/internal/config"
	"github.com/patrickwarner/floodwatch/internal/db"
	"github.com/patrickwarner/floodwatch/internal/models"
	"github.com/patrickwarner/floodwatch/internal/observability"
)

var (
	userCount   = flag.Int("users", 5, "number of demo users")
	reportsPer  = flag.Int("reports", 4, "reports per user")
	resolvedPct = flag.Float64("resolved", 0.3, "fraction of reports marked RESOLVED")
	seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

// spot is a flood-prone place around Jakarta.
type spot struct {
	name string
	lat  float64
	lng  float64
}

var spots = []spot{
	{"Kampung Melayu", -6.2250, 106.8670},
	{"Jl. Kemang Raya", -6.2607, 106.8136},
	{"Cawang", -6.2425, 106.8663},
	{"Bukit Duri", -6.2196, 106.8582},
	{"Pluit", -6.1187, 106.7930},
	{"Cipinang Melayu", -6.2446, 106.9022},
	{"Grogol", -6.1661, 106.7897},
	{"Pejaten Timur", -6.2745, 106.8459},
}

var descriptions = []string{
	"Air naik sejak subuh, jalan tidak bisa dilalui motor",
	"Genangan di depan pasar, arus cukup deras",
	"Banjir kiriman, warga mulai mengungsi",
	"Saluran tersumbat, air setinggi lutut",
	"Air mulai surut, lumpur masih tebal",
}

var names = []string{"Sari", "Budi", "Dewi", "Agus", "Rina", "Joko", "Wulan", "Teguh"}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger, err := observability.InitLogger(cfg.ServiceName + "-seeder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pg, err := db.InitPostgres(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	r := rand.New(rand.NewSource(*seed))
	users := demoUsers(*userCount)
	if err := insertUsers(ctx, pg.Gorm, users); err != nil {
		logger.Fatal("insert users", zap.Error(err))
	}

	repo := db.NewReportRepository(pg.Gorm, nil)
	created := 0
	for _, u := range users {
		for i := 0; i < *reportsPer; i++ {
			report := demoReport(r, u.ID, *resolvedPct)
			if err := repo.Create(ctx, report); err != nil {
				logger.Fatal("insert report", zap.Error(err))
			}
			created++
		}
	}

	logger.Info("seed complete", zap.Int("users", len(users)), zap.Int("reports", created), zap.Int64("seed", *seed))
}

// demoUsers returns n users with stable ids so repeated runs do not duplicate them.
func demoUsers(n int) []models.User {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}
		email := fmt.Sprintf("demo%d@floodwatch.local", i+1)
		users = append(users, models.User{
			ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("floodwatch:"+email)).String(),
			Name:  name,
			Email: email,
		})
	}
	return users
}

func insertUsers(ctx context.Context, gdb *gorm.DB, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return gdb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error
}

func demoReport(r *rand.Rand, userID string, resolvedPct float64) *models.Report {
	s := spots[r.Intn(len(spots))]
	jitter := func() float64 { return (r.Float64() - 0.5) * 0.01 }
	status := models.StatusActive
	if r.Float64() < resolvedPct {
		status = models.StatusResolved
	}
	return &models.Report{
		Location:    s.name,
		Coordinates: datatypes.NewJSONType(models.Coordinates{Lat: s.lat + jitter(), Lng: s.lng + jitter()}),
		WaterLevel:  float64(10+r.Intn(150)) + float64(r.Intn(10))/10,
		Description: descriptions[r.Intn(len(descriptions))],
		Status:      status,
		UserID:      userID,
	}
}
