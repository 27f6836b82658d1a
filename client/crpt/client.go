package crpt

import (
	"context"
	"log/slog"
	"time"

	"crpt-client/client/crpt/application"
	"crpt-client/client/crpt/domain"
	"crpt-client/client/crpt/infra"
)

// DefaultEndpoint é o endpoint de criação de documentos do registro.
const DefaultEndpoint = "https://ismp.crpt.ru/api/v3/lk/documents/create"

type Options struct {
	// RequestLimit é o máximo de requisições por TimeUnit.
	RequestLimit int
	// TimeUnit é a duração da janela (ex: time.Second, time.Minute).
	TimeUnit time.Duration

	// Endpoint só deve ser trocado em testes/homologação. Padrão: DefaultEndpoint.
	Endpoint string
	// SignatureField é o nome do campo que recebe a assinatura. Padrão: "signature".
	SignatureField string

	// PerParticipant cria um gate por participante (KeyFn) em vez de um gate único.
	PerParticipant bool
	// KeyFn só é usado com PerParticipant. Padrão: ParticipantKey.
	KeyFn KeyFunc
	// IdleTTL/CleanupEvery controlam a limpeza de gates ociosos com PerParticipant.
	IdleTTL      time.Duration
	CleanupEvery time.Duration

	// AcquireTimeout limita a espera por uma permissão. 0 = espera indefinidamente.
	AcquireTimeout time.Duration
	// HTTPTimeout limita cada POST do transporte padrão.
	HTTPTimeout time.Duration

	// GenerateDocID preenche doc_id vazio com um UUID (serializer padrão).
	GenerateDocID bool

	Transport  domain.Transport
	Serializer domain.Serializer
	Stats      domain.StatsStore
	Logger     *slog.Logger

	// GateOptions são repassadas para cada WindowGate criado.
	GateOptions []infra.GateOption
}

// Client cria documentos no registro respeitando o limite de requisições.
type Client struct {
	submitter *application.Submitter

	gate     *infra.WindowGate
	registry *infra.Registry
	stop     context.CancelFunc
}

// New monta o cliente. Erros de configuração voltam como *domain.ConfigurationError.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport == nil {
		var trOpts []infra.HTTPTransportOption
		if opts.HTTPTimeout > 0 {
			trOpts = append(trOpts, infra.WithHTTPTimeout(opts.HTTPTimeout))
		}
		opts.Transport = infra.NewHTTPTransport(trOpts...)
	}
	if opts.Serializer == nil {
		opts.Serializer = infra.JSONSerializer{GenerateDocID: opts.GenerateDocID}
	}

	gateOpts := append([]infra.GateOption{infra.WithGateLogger(opts.Logger)}, opts.GateOptions...)

	c := &Client{stop: func() {}}
	var (
		gates domain.GateStore
		keyFn KeyFunc
	)
	if opts.PerParticipant {
		regOpts := []infra.RegistryOption{infra.WithRegistryGateOptions(gateOpts...)}
		if opts.IdleTTL > 0 {
			regOpts = append(regOpts, infra.WithIdleTTL(opts.IdleTTL))
		}
		if opts.CleanupEvery > 0 {
			regOpts = append(regOpts, infra.WithCleanupEvery(opts.CleanupEvery))
		}
		reg, err := infra.NewRegistry(opts.RequestLimit, opts.TimeUnit, regOpts...)
		if err != nil {
			return nil, err
		}
		c.registry = reg
		gates = reg

		keyFn = opts.KeyFn
		if keyFn == nil {
			keyFn = ParticipantKey
		}
	} else {
		g, err := infra.NewWindowGate(opts.RequestLimit, opts.TimeUnit, gateOpts...)
		if err != nil {
			return nil, err
		}
		c.gate = g
		gates = application.SinglePool(g)
	}

	sub, err := application.NewSubmitter(application.SubmitterOptions{
		Gates:          gates,
		KeyFn:          keyFn,
		AcquireTimeout: opts.AcquireTimeout,
		Transport:      opts.Transport,
		Serializer:     opts.Serializer,
		Endpoint:       opts.Endpoint,
		SignatureField: opts.SignatureField,
		Stats:          opts.Stats,
		Logger:         opts.Logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.submitter = sub

	if c.registry != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.stop = cancel
		c.registry.StartJanitor(ctx)
	}

	opts.Logger.Info("crpt client ready",
		"endpoint", opts.Endpoint,
		"request_limit", opts.RequestLimit,
		"time_unit", opts.TimeUnit,
		"per_participant", opts.PerParticipant)
	return c, nil
}

// NewWithLimit é o atalho para o caso comum: gate único, endpoint padrão.
func NewWithLimit(timeUnit time.Duration, requestLimit int) (*Client, error) {
	return New(Options{RequestLimit: requestLimit, TimeUnit: timeUnit})
}

// CreateDocument envia o documento assinado. Nunca faz retry.
// Veja application.Submitter.Submit para os erros possíveis.
func (c *Client) CreateDocument(ctx context.Context, doc domain.Document, sign string) error {
	return c.submitter.Submit(ctx, doc, sign)
}

// Available devolve as permissões restantes na janela do gate da chave.
// Sem PerParticipant a chave é ignorada.
func (c *Client) Available(key domain.Key) int {
	if c.registry != nil {
		return c.registry.Gate(key).Available()
	}
	return c.gate.Available()
}

// Close encerra os gates. Quem esperava uma permissão recebe domain.ErrCancelled;
// envios já em andamento não são interrompidos.
func (c *Client) Close() {
	c.stop()
	if c.registry != nil {
		c.registry.Close()
	}
	if c.gate != nil {
		c.gate.Shutdown()
	}
}
