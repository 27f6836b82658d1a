package crpt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crpt-client/client/crpt/domain"
	"crpt-client/client/crpt/infra"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

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

func newTestClient(t *testing.T, url string, ticks chan time.Time, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		RequestLimit: 5,
		TimeUnit:     time.Second,
		Endpoint:     url,
		Logger:       quietLogger(),
		GateOptions:  []infra.GateOption{infra.WithTicks(ticks)},
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_ConfigurationErrors(t *testing.T) {
	cases := []Options{
		{RequestLimit: 0, TimeUnit: time.Second},
		{RequestLimit: 5, TimeUnit: 0},
		{RequestLimit: 5, TimeUnit: time.Second, Endpoint: "not a url"},
		{RequestLimit: 0, TimeUnit: time.Second, PerParticipant: true},
	}
	for i, opts := range cases {
		opts.Logger = quietLogger()
		if _, err := New(opts); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("case %d: expected configuration error, got %v", i, err)
		}
	}
}

func TestCreateDocument_SendsExpectedRequest(t *testing.T) {
	var got map[string]any
	var gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/api/v3/lk/documents/create", make(chan time.Time))

	if err := c.CreateDocument(context.Background(), sampleDocument(), "sampleSignature"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotType != "application/json" {
		t.Fatalf("expected application/json, got %q", gotType)
	}
	if got["signature"] != "sampleSignature" {
		t.Fatalf("expected injected signature, got %v", got["signature"])
	}
	if got["production_date"] != "2024-01-23" || got["reg_date"] != "2020-01-23" {
		t.Fatalf("expected ISO dates, got %v / %v", got["production_date"], got["reg_date"])
	}
	products, _ := got["products"].([]any)
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %v", got["products"])
	}
}

func TestCreateDocument_SixthWaitsForWindowReset(t *testing.T) {
	hold := make(chan struct{})
	var inFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.Add(1)
		<-hold
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer func() {
		select {
		case <-hold:
		default:
			close(hold)
		}
	}()

	ticks := make(chan time.Time)
	c := newTestClient(t, srv.URL, ticks)
	ctx := context.Background()

	results := make(chan error, 6)
	for i := 0; i < 5; i++ {
		go func() { results <- c.CreateDocument(ctx, sampleDocument(), "sig") }()
	}

	deadline := time.Now().Add(2 * time.Second)
	for inFlight.Load() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 5 submissions in flight without blocking, got %d", inFlight.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if c.Available("") != 0 {
		t.Fatalf("expected quota to be exhausted, got %d", c.Available(""))
	}

	sixth := make(chan error, 1)
	go func() { sixth <- c.CreateDocument(ctx, sampleDocument(), "sig") }()

	select {
	case err := <-sixth:
		t.Fatalf("expected sixth submission to block, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if inFlight.Load() != 5 {
		t.Fatalf("expected sixth request not to be sent yet")
	}

	// nova janela
	ticks <- time.Now()
	close(hold)

	select {
	case err := <-sixth:
		if err != nil {
			t.Fatalf("expected sixth submission to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sixth submission still blocked after window reset")
	}
	for i := 0; i < 5; i++ {
		if err := <-results; err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}
}

func TestCreateDocument_RemoteRejectedReturnsPermitImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	stats := infra.NewMemoryStatsStore()
	c := newTestClient(t, srv.URL, make(chan time.Time), func(o *Options) { o.Stats = stats })

	err := c.CreateDocument(context.Background(), sampleDocument(), "sig")

	var rr *domain.RemoteRejectedError
	if !errors.As(err, &rr) || rr.Status != http.StatusInternalServerError {
		t.Fatalf("expected RemoteRejected(500), got %v", err)
	}
	if got := c.Available(""); got != 5 {
		t.Fatalf("expected permit back in the pool, available=%d", got)
	}
	if got := stats.Total()[domain.OutcomeRejected]; got != 1 {
		t.Fatalf("expected 1 rejected event, got %d", got)
	}
}

func TestCreateDocument_TransportFailureReturnsPermit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, make(chan time.Time))

	before := c.Available("")
	err := c.CreateDocument(context.Background(), sampleDocument(), "sig")
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if after := c.Available(""); after != before {
		t.Fatalf("expected available=%d after failure, got %d", before, after)
	}
}

func TestClose_CancelsBlockedCallers(t *testing.T) {
	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-hold
	}))
	defer srv.Close()
	defer close(hold)

	c := newTestClient(t, srv.URL, make(chan time.Time), func(o *Options) { o.RequestLimit = 1 })
	ctx := context.Background()

	go func() { _ = c.CreateDocument(ctx, sampleDocument(), "sig") }()
	deadline := time.Now().Add(2 * time.Second)
	for c.Available("") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first submission never took the permit")
		}
		time.Sleep(time.Millisecond)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.CreateDocument(ctx, sampleDocument(), "sig")
		}()
	}
	time.Sleep(20 * time.Millisecond)

	c.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("blocked callers were not released by Close")
	}
	close(errs)
	for err := range errs {
		if !errors.Is(err, domain.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	}
}

func TestCreateDocument_PerParticipantGates(t *testing.T) {
	tr := &gatedTransport{
		blockOn: "1122334455",
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestClient(t, "https://registry.test/create", make(chan time.Time), func(o *Options) {
		o.RequestLimit = 1
		o.PerParticipant = true
		o.AcquireTimeout = 30 * time.Millisecond
		o.Transport = tr
	})
	ctx := context.Background()

	a := sampleDocument()
	b := sampleDocument()
	b.Description.ParticipantInn = "9988776655"

	first := make(chan error, 1)
	go func() { first <- c.CreateDocument(ctx, a, "sig") }()
	select {
	case <-tr.entered:
	case <-time.After(time.Second):
		t.Fatalf("first submission for participant a never reached the transport")
	}

	// a está com a única permissão do seu gate
	if err := c.CreateDocument(ctx, a, "sig"); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected participant a to time out waiting, got %v", err)
	}
	if err := c.CreateDocument(ctx, b, "sig"); err != nil {
		t.Fatalf("expected participant b to pass with its own quota, got %v", err)
	}

	close(tr.release)
	if err := <-first; err != nil {
		t.Fatalf("expected first submission to succeed, got %v", err)
	}
	if got := c.Available("1122334455"); got != 1 {
		t.Fatalf("expected participant a permit back, got %d", got)
	}
}

// gatedTransport segura os corpos que contêm blockOn até release fechar.
type gatedTransport struct {
	blockOn string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) Send(_ context.Context, _ string, _ map[string]string, body []byte) (int, error) {
	if strings.Contains(string(body), g.blockOn) {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return http.StatusOK, nil
}

func TestParticipantKey_Fallbacks(t *testing.T) {
	doc := domain.Document{OwnerInn: " 333 "}
	if got := ParticipantKey(doc); got != "333" {
		t.Fatalf("expected owner inn fallback, got %q", got)
	}
	doc.ParticipantInn = "222"
	if got := ParticipantKey(doc); got != "222" {
		t.Fatalf("expected participant inn, got %q", got)
	}
	doc.Description.ParticipantInn = "111"
	if got := ParticipantKey(doc); got != "111" {
		t.Fatalf("expected description participant inn, got %q", got)
	}
	if got := ParticipantKey(domain.Document{}); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}
