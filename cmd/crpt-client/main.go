package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"crpt-client/client/crpt"
	"crpt-client/client/crpt/domain"
	"crpt-client/client/crpt/infra"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if !run() {
		os.Exit(1)
	}
}

// run devolve true quando todos os documentos foram aceitos.
func run() bool {
	// .env é opcional; variáveis já definidas no ambiente têm prioridade.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("dotenv error: %v", err)
	}

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))

	doc, err := loadDocument(cfg.documentFile)
	if err != nil {
		log.Fatalf("document error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var stores []domain.StatsStore
	stats := infra.NewMemoryStatsStore()
	stores = append(stores, stats)

	if cfg.statsRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		stores = append(stores, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsRedisPrefix),
			infra.WithStatsTTL(cfg.statsRedisTTL),
			infra.WithStatsTrackKeys(cfg.perParticipant),
		))
	}

	if cfg.metricsAddr != "" {
		prom, err := infra.NewPrometheusStatsStore(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatalf("metrics error: %v", err)
		}
		stores = append(stores, prom)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Printf("metrics listening on %s/metrics", cfg.metricsAddr)
	}

	client, err := crpt.New(crpt.Options{
		RequestLimit:   cfg.requestLimit,
		TimeUnit:       cfg.timeUnit,
		Endpoint:       cfg.endpoint,
		SignatureField: cfg.signatureField,
		PerParticipant: cfg.perParticipant,
		AcquireTimeout: cfg.acquireTimeout,
		HTTPTimeout:    cfg.httpTimeout,
		GenerateDocID:  cfg.generateDocID,
		Stats:          infra.TeeStats(stores...),
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("client error: %v", err)
	}

	// Ctrl+C cancela as esperas por permissão; envios em andamento terminam.
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	log.Printf("submitting %d document(s) to %s", cfg.count, cfg.endpoint)
	log.Printf("rate: limit=%d per %s perParticipant=%v acquireTimeout=%s", cfg.requestLimit, cfg.timeUnit, cfg.perParticipant, cfg.acquireTimeout)
	log.Printf("stats: redis=%v addr=%q metrics=%q", cfg.statsRedisEnabled, cfg.statsRedisAddr, cfg.metricsAddr)

	started := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < cfg.count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := doc
			if cfg.count > 1 && d.DocID != "" {
				d.DocID = fmt.Sprintf("%s-%d", d.DocID, i+1)
			}
			if err := client.CreateDocument(ctx, d, cfg.sign); err != nil {
				var rr *domain.RemoteRejectedError
				if errors.As(err, &rr) {
					log.Printf("document %s rejected: HTTP %d", d.DocID, rr.Status)
					return
				}
				log.Printf("document %s failed: %v", d.DocID, err)
			}
		}(i)
	}
	wg.Wait()
	client.Close()

	total := stats.Total()
	log.Printf("done in %s: accepted=%d rejected=%d transport_failure=%d cancelled=%d",
		time.Since(started).Round(time.Millisecond),
		total[domain.OutcomeAccepted], total[domain.OutcomeRejected],
		total[domain.OutcomeTransportFailure], total[domain.OutcomeCancelled])

	return total[domain.OutcomeAccepted] == int64(cfg.count)
}

func loadDocument(path string) (domain.Document, error) {
	if path == "" {
		return sampleDocument(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	var doc domain.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func sampleDocument() domain.Document {
	d := domain.NewDate(2024, time.January, 23)
	return domain.Document{
		Description:    domain.Description{ParticipantInn: "1122334455"},
		DocID:          "document1",
		DocStatus:      "doc_in_progress",
		DocType:        "LP_INTRODUCE_GOODS",
		ImportRequest:  true,
		OwnerInn:       "1122112211",
		ParticipantInn: "2233223322",
		ProducerInn:    "1234567890",
		ProductionDate: d,
		ProductionType: "type1",
		Products: []domain.Product{{
			CertificateDocument:       "socks12",
			CertificateDocumentDate:   d,
			CertificateDocumentNumber: "bla222",
			OwnerInn:                  "6767676767",
			ProducerInn:               "4545454545",
			ProductionDate:            d,
			TnvedCode:                 "prod12",
			UitCode:                   "prod123",
			UituCode:                  "prod1234",
		}},
		RegDate:   domain.NewDate(2020, time.January, 23),
		RegNumber: "nik90",
	}
}

type config struct {
	endpoint       string
	requestLimit   int
	timeUnit       time.Duration
	signatureField string
	perParticipant bool
	acquireTimeout time.Duration
	httpTimeout    time.Duration
	generateDocID  bool
	sign           string
	documentFile   string
	count          int
	logLevel       slog.Level
	metricsAddr    string

	statsRedisEnabled  bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsRedisPrefix   string
	statsRedisTTL      time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.endpoint = getenvDefault("CRPT_ENDPOINT", crpt.DefaultEndpoint)
	cfg.requestLimit = getenvIntDefault("CRPT_REQUEST_LIMIT", 5)
	cfg.timeUnit = getenvDurationDefault("CRPT_TIME_UNIT", time.Second)
	cfg.signatureField = getenvDefault("CRPT_SIGNATURE_FIELD", "signature")
	cfg.perParticipant = getenvBoolDefault("CRPT_PER_PARTICIPANT", false)
	cfg.acquireTimeout = getenvDurationDefault("CRPT_ACQUIRE_TIMEOUT", 0)
	cfg.httpTimeout = getenvDurationDefault("CRPT_HTTP_TIMEOUT", 30*time.Second)
	cfg.generateDocID = getenvBoolDefault("CRPT_GENERATE_DOC_ID", false)
	cfg.sign = os.Getenv("CRPT_SIGN")
	cfg.documentFile = os.Getenv("CRPT_DOCUMENT_FILE")
	cfg.count = getenvIntDefault("CRPT_COUNT", 1)
	cfg.metricsAddr = os.Getenv("METRICS_ADDR")

	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg.statsRedisEnabled = getenvBoolDefault("STATS_REDIS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsRedisPrefix = getenvDefault("STATS_REDIS_PREFIX", "crpt:stats")
	cfg.statsRedisTTL = getenvDurationDefault("STATS_REDIS_TTL", 24*time.Hour)

	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	if strings.TrimSpace(cfg.sign) == "" {
		return config{}, errors.New("CRPT_SIGN is required")
	}
	if cfg.requestLimit <= 0 {
		return config{}, errors.New("CRPT_REQUEST_LIMIT must be > 0")
	}
	if cfg.timeUnit <= 0 {
		return config{}, errors.New("CRPT_TIME_UNIT must be > 0")
	}
	if cfg.count <= 0 {
		return config{}, errors.New("CRPT_COUNT must be > 0")
	}
	return cfg, nil
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

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
