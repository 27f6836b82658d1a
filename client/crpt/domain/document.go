package domain

import (
	"bytes"
	"fmt"
	"time"
)

// DateLayout é o formato ISO (yyyy-MM-dd) exigido pela API nos campos de data.
const DateLayout = "2006-01-02"

// Date é uma data de calendário sem hora.
// A data zero vira null no JSON.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate lê uma data no formato yyyy-MM-dd.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid date %s: expected a quoted string", b)
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type Description struct {
	ParticipantInn string `json:"participantInn"`
}

// Document é o documento de introdução de mercadorias enviado ao registro.
// Os nomes dos campos JSON seguem o contrato da API, não o estilo Go.
type Document struct {
	Description    Description `json:"description"`
	DocID          string      `json:"doc_id"`
	DocStatus      string      `json:"doc_status"`
	DocType        string      `json:"doc_type"`
	ImportRequest  bool        `json:"importRequest"`
	OwnerInn       string      `json:"owner_inn"`
	ParticipantInn string      `json:"participant_inn"`
	ProducerInn    string      `json:"producer_inn"`
	ProductionDate Date        `json:"production_date"`
	ProductionType string      `json:"production_type"`
	Products       []Product   `json:"products"`
	RegDate        Date        `json:"reg_date"`
	RegNumber      string      `json:"reg_number"`
}

type Product struct {
	CertificateDocument       string `json:"certificate_document"`
	CertificateDocumentDate   Date   `json:"certificate_document_date"`
	CertificateDocumentNumber string `json:"certificate_document_number"`
	OwnerInn                  string `json:"owner_inn"`
	ProducerInn               string `json:"producer_inn"`
	ProductionDate            Date   `json:"production_date"`
	TnvedCode                 string `json:"tnved_code"`
	UitCode                   string `json:"uit_code"`
	UituCode                  string `json:"uitu_code"`
}
