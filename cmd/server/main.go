package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/gift-exchange/internal/api"
	"github.com/ignite/gift-exchange/internal/archive"
	"github.com/ignite/gift-exchange/internal/auth"
	"github.com/ignite/gift-exchange/internal/config"
	"github.com/ignite/gift-exchange/internal/mailer"
	"github.com/ignite/gift-exchange/internal/notify"
	"github.com/ignite/gift-exchange/internal/raffle"
	"github.com/ignite/gift-exchange/internal/store"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Gift Exchange Server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()
	log.Printf("Store initialized (type=%s)", cfg.Store.Type)

	sender, err := mailer.New(cfg.Mailer)
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}
	renderer, err := mailer.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to parse email templates: %v", err)
	}

	dispatcher := notify.NewDispatcher(st, sender, renderer)

	serviceOpts := []raffle.Option{raffle.WithResender(dispatcher)}
	archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
	if err != nil {
		log.Printf("Warning: draw archival disabled: %v", err)
	} else if archiver != nil {
		serviceOpts = append(serviceOpts, raffle.WithArchiver(archiver))
		log.Printf("Draw archival enabled (bucket=%s)", cfg.Archive.S3Bucket)
	}
	service := raffle.NewService(st, serviceOpts...)

	verifier := auth.NewVerifier(cfg.Auth)
	if !cfg.Auth.Enabled {
		log.Println("Auth disabled (dev mode): callers identified by X-Dev-Email header")
	}

	handlers := api.NewHandlers(service, dispatcher, st)

	// Redis enables webhook deduplication; the server runs fine without it.
	if cfg.Redis.URL != "" {
		var redisClient *redis.Client
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — webhook dedup disabled", cfg.Redis.URL, err)
			redisClient.Close()
		} else {
			handlers.SetRedisClient(redisClient, cfg.Redis.DedupTTLSeconds)
			defer redisClient.Close()
			log.Printf("Redis connected: %s (webhook dedup enabled)", cfg.Redis.URL)
		}
		pingCancel()
	}

	server := api.NewServer(cfg.Server, handlers, verifier)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
