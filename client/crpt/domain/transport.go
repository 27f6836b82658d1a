package domain

import "context"

// Transport envia um corpo já serializado para a URL e devolve o status HTTP.
//
// Um erro significa falha de I/O (nenhuma resposta). Qualquer status, inclusive 5xx,
// é devolvido sem erro; quem decide o que é sucesso é o Submitter.
type Transport interface {
	Send(ctx context.Context, url string, headers map[string]string, body []byte) (status int, err error)
}

// Serializer transforma um Document no seu objeto JSON canônico.
type Serializer interface {
	Marshal(doc Document) ([]byte, error)
}
