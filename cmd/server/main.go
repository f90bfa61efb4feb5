package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/chama/internal/devserver"
	"github.com/mmynk/chama/pkg/logging"
)

const (
	port = 5000
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// JSON lines, so the output can be piped next to the client's.
	logging.SetupJSON(os.Stdout, logging.LevelFromString(getEnv("LOG_LEVEL", "debug")))
	logger := slog.Default()

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		slog.Error("Invalid TOKEN_TTL", "error", err)
		os.Exit(1)
	}

	srv := devserver.New(devserver.Options{
		Secret:   getEnv("JWT_SECRET", "chama-dev-secret"),
		TokenTTL: ttl,
		Logger:   logger,
	})

	handler := corsMiddleware(srv.Handler())

	// h2c lets HTTP/2 clients talk to the server without TLS.
	h2cHandler := h2c.NewHandler(handler, &http2.Server{})

	addr := getEnv("ADDR", fmt.Sprintf(":%d", port))
	slog.Info("Development backend starting", "address", addr, "realtime", "/realtime")
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
