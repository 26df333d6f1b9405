package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/aquavo/fishweb-cart/internal/cache"
	"github.com/aquavo/fishweb-cart/internal/catalog"
	"github.com/aquavo/fishweb-cart/internal/config"
	h "github.com/aquavo/fishweb-cart/internal/http"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/aquavo/fishweb-cart/internal/poller"
	"github.com/aquavo/fishweb-cart/internal/repository"
	s "github.com/aquavo/fishweb-cart/internal/service"
	"github.com/redis/go-redis/v9"
)

// memoryRepo as MONGO_URI keeps carts in process memory, for local runs without MongoDB.
const memoryRepo = "memory"

func main() {
	issueToken := flag.String("issue-token", "", "print a session token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *issueToken != "" {
		token, err := h.NewToken([]byte(cfg.JWTSecret), *issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log := logger.New(cfg.LogLevel, "cartd")
	if err := run(cfg, log); err != nil {
		log.Error("cart service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.ServerConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository.CartRepository
	if cfg.MongoURI == memoryRepo {
		memRepo := repository.NewMemoryRepository()
		defer memRepo.Close()
		repo = memRepo
		log.Warn("using in-memory cart repository")
	} else {
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				log.Warn("mongo disconnect failed", "error", err)
			}
		}()
		mongoRepo := repository.NewMongoRepository(mongoDB)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			return err
		}
		repo = mongoRepo
		log.Info("connected to MongoDB", "db", cfg.MongoDBName)
	}

	products, err := catalog.Open(ctx, cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.Migrate(); err != nil {
		return err
	}
	log.Info("catalog ready", "driver", cfg.CatalogDriver)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	carts := s.NewCartService(repo, c.NewRedisCache(redisClient), products, log)

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(carts, poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.CheckoutTopic,
			GroupID: cfg.ConsumerGroup,
		}, log)
		defer p.Close()
		go p.Run(ctx)
		log.Info("checkout poller started", "topic", cfg.CheckoutTopic)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			JWTSecret:          []byte(cfg.JWTSecret),
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		}, carts, products, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("cart API listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
