package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// Registro falso para testar o cliente localmente:
//
//	CRPT_ENDPOINT=http://localhost:8081/api/v3/lk/documents/create go run ./cmd/crpt-client
//
// Aceita o documento se o JSON tiver doc_id e o campo de assinatura. Acima de
// RATE_RPS responde 429, simulando a cota do registro real.
func main() {
	addr := getenvDefault("LISTEN_ADDR", ":8081")
	signField := getenvDefault("SIGNATURE_FIELD", "signature")
	rps := getenvFloatDefault("RATE_RPS", 5)
	burst := getenvIntDefault("RATE_BURST", 5)

	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	var seq atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/lk/documents/create", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			log.Printf("rejected: quota exceeded")
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		docID, _ := body["doc_id"].(string)
		sign, _ := body[signField].(string)
		if docID == "" || sign == "" {
			http.Error(w, "doc_id and "+signField+" are required", http.StatusBadRequest)
			log.Printf("rejected: missing doc_id or %s", signField)
			return
		}

		n := seq.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"value": strconv.FormatInt(n, 10)})
		log.Printf("accepted document %s (#%d)", docID, n)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example registry listening on %s (rps=%.2f burst=%d signatureField=%q)", addr, rps, burst, signField)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
