package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"lumina/internal/api"
	"lumina/internal/app"
	"lumina/internal/config"
	"lumina/internal/web"
)

func main() {
	cfg := config.Load()
	cfg.EnsureDirs()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(api.Deps{
		Library:     a.Library,
		Documents:   a.Documents,
		Ingestion:   a.Ingestion,
		Sessions:    a.Sessions,
		Flashcards:  a.Flashcards,
		Worksheets:  a.Worksheets,
		Settings:    a.Settings,
		Images:      a.Images,
		BaseContext: ctx,
	})

	shell, err := web.NewShell()
	if err != nil {
		log.Fatalf("load app shell: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	server.Routes(r)
	r.Handle("/*", shell)

	if cfg.MockAI {
		log.Printf("no language model configured, serving canned questions")
	}
	log.Printf("listening on :%s (db=%s, shell=%s)", cfg.Port, cfg.Database, web.CacheName)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
