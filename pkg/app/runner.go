package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/small-frappuccino/ally/pkg/alliances"
	"github.com/small-frappuccino/ally/pkg/cache"
	"github.com/small-frappuccino/ally/pkg/discord"
	"github.com/small-frappuccino/ally/pkg/guilds"
	"github.com/small-frappuccino/ally/pkg/logging"
	"github.com/small-frappuccino/ally/pkg/nations"
	"github.com/small-frappuccino/ally/pkg/pnw"
	"github.com/small-frappuccino/ally/pkg/storage"
	"github.com/small-frappuccino/ally/pkg/task"
	"github.com/small-frappuccino/ally/pkg/util"
)

// Run bootstraps the bot and blocks until an interrupt arrives. Environment:
// ALLY_DISCORD_TOKEN and ALLY_PNW_API_KEY are required; ALLY_DATA_DIR,
// ALLY_PNW_API_URL, ALLY_DB_PATH and ALLY_DEBUG are optional overrides.
func Run() error {
	started := time.Now()

	token, err := util.LoadEnv("ALLY_DISCORD_TOKEN")
	if err != nil {
		return err
	}
	apiKey, err := util.LoadEnv("ALLY_PNW_API_KEY")
	if err != nil {
		return err
	}

	dataDir := util.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := logging.Setup(filepath.Join(dataDir, "logs"), os.Getenv("ALLY_DEBUG") != ""); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.Info("starting ally", "version", Version, "data_dir", dataDir)

	store := storage.NewStore(util.EnvOr("ALLY_DB_PATH", filepath.Join(dataDir, "ally.db")))
	if err := store.Init(); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer store.Close()

	api := pnw.NewGraphQLClient(apiKey, util.EnvOr("ALLY_PNW_API_URL", ""))

	kv := cache.NewTTLMap(guilds.DefaultConfigTTL, time.Minute)
	defer kv.Close()

	nationSvc := nations.NewService(store, api)
	allianceSvc := alliances.NewService(store, api)
	guildSvc := guilds.NewService(store, kv)

	router := task.NewRouter(task.Defaults())
	defer router.Close()

	refreshEvery := 10 * time.Minute
	if v := os.Getenv("ALLY_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			refreshEvery = d
		} else {
			slog.Warn("invalid ALLY_REFRESH_INTERVAL, using default", "value", v, "default", refreshEvery.String())
		}
	}
	refresher := task.NewRefreshScheduler(router, nationSvc, allianceSvc, guildSvc, refreshEvery)
	refresher.Start()
	defer refresher.Stop()

	session, err := discord.NewSession(token)
	if err != nil {
		return err
	}
	defer session.Close()

	handler := discord.NewHandler(session, nationSvc, allianceSvc, guildSvc)
	if err := discord.Register(session, handler); err != nil {
		return err
	}
	discord.RegisterEvents(session, guildSvc)

	slog.Info("ally running", "startup", time.Since(started).Round(time.Millisecond).String())

	util.WaitForInterrupt(func() {
		slog.Info("shutting down")
	})
	return nil
}
