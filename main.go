package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ekkarat74/Message-Chat/internal/config"
	"github.com/ekkarat74/Message-Chat/internal/handlers"
	"github.com/ekkarat74/Message-Chat/internal/hub"
	"github.com/ekkarat74/Message-Chat/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found, using system environment")
	}

	cfg := config.Load()

	st, err := sqlite.NewStore(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	h := hub.NewHub(st, cfg.CallCapacity, cfg.StunURLs)

	mux := http.NewServeMux()
	mux.Handle("/ws", handlers.NewWSHandler(h, cfg))
	handlers.NewAPIHandler(st, cfg).Register(mux)
	mux.Handle("/", http.FileServer(http.Dir("web/dist")))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: securityHeadersMiddleware(mux),
	}

	go func() {
		log.Printf("Message-Chat server starting on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	log.Printf("server stopped")
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(self), microphone=(self), geolocation=()")
		next.ServeHTTP(w, r)
	})
}
