package domain

import (
	"context"
	"errors"
	"time"
)

// Outcome é o resultado de uma submissão, usado em logs e estatísticas.
type Outcome string

const (
	OutcomeAccepted             Outcome = "accepted"
	OutcomeRejected             Outcome = "rejected"
	OutcomeTransportFailure     Outcome = "transport_failure"
	OutcomeSerializationFailure Outcome = "serialization_failure"
	OutcomeCancelled            Outcome = "cancelled"
	OutcomeUnknown              Outcome = "unknown"
)

// OutcomeOf classifica o erro devolvido por uma submissão.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrRemoteRejected):
		return OutcomeRejected
	case errors.Is(err, ErrTransport):
		return OutcomeTransportFailure
	case errors.Is(err, ErrSerialization):
		return OutcomeSerializationFailure
	default:
		return OutcomeUnknown
	}
}

// StatsEvent representa uma submissão concluída (com sucesso ou não).
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	DocType string
	Outcome Outcome
	// Status é o código HTTP quando houve resposta, 0 caso contrário.
	Status int
	// Waited é o tempo gasto esperando uma permissão do gate.
	Waited time.Duration

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas das submissões.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O Submitter trata erro como best-effort (não falha a submissão).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
