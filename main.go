package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"starmap/config"
	"starmap/handler"
	"starmap/likesync"
	"starmap/logging"
	"starmap/middleware"
	"starmap/service"
	"starmap/storage"
	"starmap/storage/dbstore"
	"starmap/storage/filestore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := filestore.New(cfg.FileStore.Path)
	if err := files.Ensure(); err != nil {
		logging.Fatal().Err(err).Str("path", files.Path()).Msg("init file store")
	}

	var (
		opts   []service.Option
		db     *dbstore.Store
		syncer *likesync.Syncer
	)
	if cfg.Database.Enabled {
		gdb, err := dbstore.Open(ctx, cfg.Database.DSN, dbstore.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			LogSQL:       cfg.Database.LogSQL,
		})
		if err != nil {
			logging.Error().Err(err).Msg("database unavailable, running on file store only")
		} else {
			db = dbstore.New(gdb)
			opts = append(opts, service.WithPrimary(db))
		}
	}
	if db != nil && cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		syncer = likesync.New(rdb, db, cfg.Redis.SyncInterval)
		opts = append(opts, service.WithLikeRecorder(syncer))
	}

	svc := service.New(files, opts...)
	logging.Info().Bool("database_enabled", svc.DatabaseEnabled()).Str("file_store", files.Path()).Msg("storage ready")

	if cfg.Seed.SampleData {
		seeded, err := svc.Seed(ctx, storage.SampleMarkers())
		if err != nil {
			logging.Warn().Err(err).Msg("sample data not seeded")
		} else if seeded {
			logging.Info().Msg("sample data seeded")
		}
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(), middleware.Metrics(), middleware.CORS())
	handler.New(svc, cfg.Server.StaticDir).Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if syncer != nil {
		g.Go(func() error { return syncer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	logging.Info().Msg("server stopped")
}
