package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/config"
	"github.com/Sternrassler/history-river/pkg/generator"
	"github.com/Sternrassler/history-river/pkg/lease"
	"github.com/Sternrassler/history-river/pkg/logging"
	"github.com/Sternrassler/history-river/pkg/store"
	"github.com/Sternrassler/history-river/pkg/store/db"
)

// app carries the state shared by all subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "history-river",
		Short: "Chinese history timeline API with cached AI event summaries",
		Long: `history-river serves dynasties, events and river pins for the timeline
front-end, and answers event-detail requests from a database cache, asking
the OpenRouter chat API only on a miss.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("db-driver", "sqlite", "database driver: sqlite or postgres")
	root.PersistentFlags().String("dsn", "history_river.db", "database file (sqlite) or connection string (postgres)")
	a.bindFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	a.bindFlag("database.driver", root.PersistentFlags().Lookup("db-driver"))
	a.bindFlag("database.dsn", root.PersistentFlags().Lookup("dsn"))

	root.AddCommand(
		newServeCommand(a),
		newImportCommand(a),
		newCacheCommand(a),
		newPinCommand(a),
	)
	return root
}

func (a *app) bindFlag(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LoggingConfig())
	a.cfg = cfg
	return nil
}

// openStore opens the configured database and applies pending migrations.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	driver, err := db.NewDriver(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	st := store.New(driver)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

func (a *app) newGenerator() (*generator.Client, error) {
	return generator.New(generator.Config{
		APIKey:  a.cfg.Generator.APIKey,
		BaseURL: a.cfg.Generator.BaseURL,
		Model:   a.cfg.Generator.Model,
		Timeout: a.cfg.Generator.Timeout,
	})
}

// newLocker connects the cross-process fetch lease when Redis is configured.
// The returned close func is never nil.
func (a *app) newLocker(ctx context.Context) (cache.Locker, func(), error) {
	if a.cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}

	locker := lease.NewRedis(redisClient, lease.DefaultPrefix, logging.NewLogger("lease"))
	return locker, func() { redisClient.Close() }, nil
}

func (a *app) newManager(st *store.Store, gen cache.Generator, locker cache.Locker) *cache.Manager {
	cfg := cache.DefaultConfig()
	cfg.Locker = locker
	cfg.LeaseTTL = a.cfg.Redis.LeaseTTL
	cfg.LeaseWait = a.cfg.Redis.LeaseWait
	cfg.FetchTimeout = a.cfg.Generator.Timeout
	return cache.NewManager(st, gen, cfg)
}

// offlineGenerator backs maintenance commands that never fetch.
type offlineGenerator struct{}

func (offlineGenerator) Generate(context.Context, int, string) (string, error) {
	return "", generator.ErrMissingAPIKey
}
