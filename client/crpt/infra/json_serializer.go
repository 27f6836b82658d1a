package infra

import (
	"encoding/json"

	"crpt-client/client/crpt/domain"

	"github.com/google/uuid"
)

// JSONSerializer implementa domain.Serializer com encoding/json.
type JSONSerializer struct {
	// GenerateDocID preenche doc_id vazio com um UUID novo.
	GenerateDocID bool
	// NewID troca o gerador de ids (testes). Padrão: uuid.NewString.
	NewID func() string
}

func (s JSONSerializer) Marshal(doc domain.Document) ([]byte, error) {
	if s.GenerateDocID && doc.DocID == "" {
		newID := s.NewID
		if newID == nil {
			newID = uuid.NewString
		}
		doc.DocID = newID()
	}
	return json.Marshal(doc)
}
