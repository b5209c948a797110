package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/cache"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/config"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/httpapi"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/service"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/store"
	"github.com/clickmaster4285/POS-Clothing-sub000/internal/store/memory"
	pgstore "github.com/clickmaster4285/POS-Clothing-sub000/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	var catalog store.Catalog
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		catalog = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.New()
		catalog = memory.SeededCatalog()
		log.Println("repository: in-memory")
	}

	promoCache := cache.PromotionCache(cache.NoopPromotionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisPromotionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			promoCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("promotion cache: redis")
		}
	} else {
		log.Println("promotion cache: noop")
	}

	svc := service.New(repo, catalog, promoCache, cfg.TaxRatePercent, time.Duration(cfg.PromotionTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN)
	if err := seedUsers(auth); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go runStaleHoldReaper(reaperCtx, svc, time.Duration(cfg.StaleHoldHours)*time.Hour)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopReaper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// seedUsers registers terminal credentials from the environment. Accounts with
// no password set are skipped so an operator never inherits a default login.
func seedUsers(auth *httpapi.AuthManager) error {
	pairs := []struct {
		userEnv string
		passEnv string
		role    string
	}{
		{"ADMIN_USERNAME", "ADMIN_PASSWORD", "admin"},
		{"CASHIER_USERNAME", "CASHIER_PASSWORD", "cashier"},
	}

	seeded := 0
	for _, pair := range pairs {
		username := os.Getenv(pair.userEnv)
		password := os.Getenv(pair.passEnv)
		if username == "" || password == "" {
			continue
		}
		if err := auth.SeedUser(username, password, pair.role); err != nil {
			return fmt.Errorf("%s: %w", pair.userEnv, err)
		}
		seeded++
	}
	if seeded == 0 {
		return fmt.Errorf("no users configured; set ADMIN_USERNAME and ADMIN_PASSWORD")
	}
	return nil
}

// runStaleHoldReaper voids held transactions older than maxAge on an hourly
// sweep.
func runStaleHoldReaper(ctx context.Context, svc *service.Service, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			reaped, err := svc.ReapStaleHolds(sweepCtx, maxAge)
			cancel()
			if err != nil {
				log.Printf("stale hold sweep: %v", err)
				continue
			}
			if reaped > 0 {
				log.Printf("stale hold sweep: voided %d transactions", reaped)
			}
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.ManagerPIN != "" {
		if len(cfg.ManagerPIN) < 6 {
			return fmt.Errorf("MANAGER_PIN must be at least 6 digits")
		}
		if err := validatePINStrength(cfg.ManagerPIN); err != nil {
			return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
		}
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
