package crpt

import (
	"strings"

	"crpt-client/client/crpt/domain"
)

// KeyFunc escolhe o gate de um documento.
type KeyFunc func(doc domain.Document) domain.Key

// ParticipantKey usa o INN do participante como chave do gate.
// Ordem: description.participantInn, participant_inn, owner_inn.
func ParticipantKey(doc domain.Document) domain.Key {
	for _, v := range []string{doc.Description.ParticipantInn, doc.ParticipantInn, doc.OwnerInn} {
		if v = strings.TrimSpace(v); v != "" {
			return domain.Key(v)
		}
	}
	// fallback: gate compartilhado dos documentos sem participante
	return ""
}
