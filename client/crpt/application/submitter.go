package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"crpt-client/client/crpt/domain"

	"golang.org/x/time/rate"
)

const (
	statusOK = 200

	// slowWait é a espera a partir da qual a submissão loga que a cota esgotou.
	slowWait = 100 * time.Millisecond
)

// SubmitterOptions configura um Submitter. Gates, Transport, Serializer e Endpoint
// são obrigatórios.
type SubmitterOptions struct {
	Gates domain.GateStore
	// KeyFn escolhe o gate do documento. Nil = chave vazia (gate compartilhado).
	KeyFn          func(domain.Document) domain.Key
	AcquireTimeout time.Duration

	Transport  domain.Transport
	Serializer domain.Serializer
	Endpoint   string
	// SignatureField é o campo de topo que recebe a assinatura. Padrão: "signature".
	SignatureField string

	Stats  domain.StatsStore
	Logger *slog.Logger
}

// Submitter envia documentos respeitando o gate de rate limit.
// Não faz retry: cada erro volta para o chamador decidir.
type Submitter struct {
	gates          domain.GateStore
	keyFn          func(domain.Document) domain.Key
	acquireTimeout time.Duration
	transport      domain.Transport
	serializer     domain.Serializer
	endpoint       string
	signatureField string
	stats          domain.StatsStore
	logger         *slog.Logger

	waitLog rate.Sometimes
}

// NewSubmitter valida a configuração. Erros aqui são *domain.ConfigurationError.
func NewSubmitter(opts SubmitterOptions) (*Submitter, error) {
	if opts.Gates == nil {
		return nil, &domain.ConfigurationError{Field: "gates", Reason: "is required"}
	}
	if opts.Transport == nil {
		return nil, &domain.ConfigurationError{Field: "transport", Reason: "is required"}
	}
	if opts.Serializer == nil {
		return nil, &domain.ConfigurationError{Field: "serializer", Reason: "is required"}
	}
	if err := validateEndpoint(opts.Endpoint); err != nil {
		return nil, err
	}

	s := &Submitter{
		gates:          opts.Gates,
		keyFn:          opts.KeyFn,
		acquireTimeout: opts.AcquireTimeout,
		transport:      opts.Transport,
		serializer:     opts.Serializer,
		endpoint:       opts.Endpoint,
		signatureField: opts.SignatureField,
		stats:          opts.Stats,
		logger:         opts.Logger,
		waitLog:        rate.Sometimes{Interval: 5 * time.Second},
	}
	if s.keyFn == nil {
		s.keyFn = func(domain.Document) domain.Key { return "" }
	}
	if s.signatureField == "" {
		s.signatureField = DefaultSignatureField
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return &domain.ConfigurationError{Field: "endpoint", Reason: err.Error()}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &domain.ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &domain.ConfigurationError{Field: "endpoint", Reason: "missing host"}
	}
	return nil
}

func (s *Submitter) Endpoint() string { return s.endpoint }

// Submit adquire uma permissão, serializa o documento com a assinatura e envia.
//
// A permissão é devolvida em qualquer saída (sucesso, erro de serialização,
// erro de transporte, panic do transporte) antes de Submit retornar.
//
// Erros: ErrCancelled (espera abortada), *SerializationError, *TransportError,
// *RemoteRejectedError (status != 200).
func (s *Submitter) Submit(ctx context.Context, doc domain.Document, signature string) (err error) {
	key := s.keyFn(doc)
	ev := domain.StatsEvent{Key: key, DocType: doc.DocType}
	started := time.Now()

	defer func() {
		ev.Outcome = domain.OutcomeOf(err)
		ev.At = time.Now()
		s.finish(ctx, doc, ev, err)
	}()

	pool := s.gates.Get(key)
	if pool == nil {
		return &domain.ConfigurationError{Field: "gates", Reason: fmt.Sprintf("no gate for key %q", key)}
	}

	release, err := Admission{Pool: pool, AcquireTimeout: s.acquireTimeout}.Acquire(ctx)
	ev.Waited = time.Since(started)
	if err != nil {
		return err
	}
	defer release()

	if ev.Waited >= slowWait {
		s.waitLog.Do(func() {
			s.logger.Info("request quota exhausted, submission waited for a permit",
				"key", key, "waited", ev.Waited)
		})
	}

	body, err := s.serializer.Marshal(doc)
	if err != nil {
		return &domain.SerializationError{Err: err}
	}
	body, err = injectField(body, s.signatureField, signature)
	if err != nil {
		return &domain.SerializationError{Err: err}
	}

	status, err := s.send(ctx, body)
	ev.Status = status
	if err != nil {
		return &domain.TransportError{Err: err}
	}
	if status != statusOK {
		return &domain.RemoteRejectedError{Status: status}
	}
	return nil
}

func (s *Submitter) send(ctx context.Context, body []byte) (status int, err error) {
	defer func() {
		if r := recover(); r != nil {
			status, err = 0, fmt.Errorf("transport panic: %v", r)
		}
	}()
	headers := map[string]string{"Content-Type": "application/json"}
	return s.transport.Send(ctx, s.endpoint, headers, body)
}

func (s *Submitter) finish(ctx context.Context, doc domain.Document, ev domain.StatsEvent, err error) {
	if s.stats != nil {
		if serr := s.stats.Record(context.WithoutCancel(ctx), ev); serr != nil {
			s.logger.Warn("stats record failed", "error", serr)
		}
	}

	attrs := []any{
		"doc_id", doc.DocID,
		"doc_type", doc.DocType,
		"outcome", ev.Outcome,
		"waited", ev.Waited,
	}
	if ev.Status != 0 {
		attrs = append(attrs, "status", ev.Status)
	}
	if err != nil {
		s.logger.Warn("document submission failed", append(attrs, "error", err)...)
		return
	}
	s.logger.Info("document submitted", attrs...)
}
