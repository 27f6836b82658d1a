package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled indica que a espera por uma permissão foi abortada:
	// o gate foi encerrado (Shutdown) ou o ctx do chamador terminou.
	ErrCancelled = errors.New("permit wait cancelled")

	// Sentinelas para errors.Is contra os tipos abaixo.
	ErrConfiguration  = &ConfigurationError{}
	ErrTransport      = &TransportError{}
	ErrRemoteRejected = &RemoteRejectedError{}
	ErrSerialization  = &SerializationError{}
)

// ConfigurationError é fatal e só ocorre na construção (limite, janela, endpoint).
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(tgt error) bool {
	_, ok := tgt.(*ConfigurationError)
	return ok
}

// TransportError é uma falha de I/O durante o envio. A permissão já foi devolvida.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(tgt error) bool {
	_, ok := tgt.(*TransportError)
	return ok
}

// RemoteRejectedError é devolvido quando a API responde com status diferente de 200.
type RemoteRejectedError struct {
	Status int
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected document: HTTP status %d", e.Status)
}

func (e *RemoteRejectedError) Is(tgt error) bool {
	_, ok := tgt.(*RemoteRejectedError)
	return ok
}

// SerializationError indica que o documento não pôde virar JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failure: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(tgt error) bool {
	_, ok := tgt.(*SerializationError)
	return ok
}
