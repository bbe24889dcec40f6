package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/limitsconfig"
	"github.com/roeimichael/VarProject/internal/pricing"
	"github.com/roeimichael/VarProject/internal/varcache"
	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/database"
	"github.com/roeimichael/VarProject/pkg/logger"
	"github.com/roeimichael/VarProject/pkg/redis"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check configuration, files and connectivity",
	Long: `Runs a series of checks without evaluating anything:
  - configuration and limits profile
  - data directory and ticker cache
  - Postgres and Redis when configured
  - price provider reachability (skip with --skip-network)`,
	RunE: runVerify,
}

var (
	verifySkipNetwork bool
	verifySymbol      string
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifySkipNetwork, "skip-network", false, "skip the price provider check")
	verifyCmd.Flags().StringVar(&verifySymbol, "symbol", "SPY", "symbol used for the provider check")
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		PrintError(err.Error())
		return err
	}

	ctx, cancel := commandContext(time.Minute)
	defer cancel()

	var db *database.DB
	defer func() {
		if db != nil {
			db.Close()
		}
	}()

	checks := []check{
		{"limits", func(ctx context.Context) (string, error) {
			p, err := limitsconfig.Resolve(cfg.Limits)
			if err != nil {
				return "", err
			}
			hash, err := limitsconfig.Hash(p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("profile %s (%s)", p.Meta.ProfileID, hash[:12]), nil
		}},
		{"data dir", func(ctx context.Context) (string, error) {
			info, err := os.Stat(cfg.Paths.DataDir)
			if err != nil {
				return "", err
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", cfg.Paths.DataDir)
			}
			return cfg.Paths.DataDir, nil
		}},
		{"postgres", func(ctx context.Context) (string, error) {
			if cfg.Database.URL == "" {
				return "not configured", nil
			}
			db, err = database.New(cfg)
			if err != nil {
				return "", err
			}
			status, err := db.HealthCheck(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ok in %v (%d/%d conns)", status.ResponseTime, status.TotalConns, status.MaxConns), nil
		}},
		{"cache", func(ctx context.Context) (string, error) {
			return verifyCache(ctx, cfg, db, log)
		}},
		{"redis", func(ctx context.Context) (string, error) {
			return verifyRedis(ctx, cfg)
		}},
	}
	if !verifySkipNetwork {
		checks = append(checks, check{"provider", func(ctx context.Context) (string, error) {
			return verifyProvider(ctx, cfg, db, log)
		}})
	}

	PrintHeader("varwatch verify")
	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			PrintError(fmt.Sprintf("%-10s %v", c.name, err))
			continue
		}
		PrintSuccess(fmt.Sprintf("%-10s %s", c.name, detail))
	}
	PrintSeparator()

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	PrintInfo("all checks passed")
	return nil
}

func verifyCache(ctx context.Context, cfg *config.Config, db *database.DB, log *logger.Logger) (string, error) {
	pool := poolOf(db)
	if cfg.Cache.Backend == "postgres" && pool == nil {
		return "", fmt.Errorf("postgres backend needs a database connection")
	}

	path := varcache.PathFor(cfg.Cache.Backend, cfg.Paths.AllTickers)
	store, closeStore, err := varcache.OpenStore(cfg.Cache.Backend, path, pool)
	if err != nil {
		return "", err
	}
	defer closeStore()

	cache, err := varcache.Load(ctx, store, log.Component("varcache"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: %d tickers", cache.Describe(), cache.Len()), nil
}

func verifyRedis(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.Redis.Enabled {
		return "disabled", nil
	}
	rc, err := redis.New(cfg)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := rc.Redis().Ping(ctx).Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s db %d", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB), nil
}

func verifyProvider(ctx context.Context, cfg *config.Config, db *database.DB, log *logger.Logger) (string, error) {
	provider, err := pricing.NewFromConfig(cfg.Prices, pricing.Deps{
		Pool: poolOf(db),
		Log:  log.Component("pricing"),
	})
	if err != nil {
		return "", err
	}

	to := time.Now()
	series, err := provider.FetchPrices(ctx, verifySymbol, to.AddDate(0, 0, -14), to)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s returned %d closes for %s", cfg.Prices.Provider, len(series.Closes()), verifySymbol), nil
}
