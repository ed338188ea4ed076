package qrcode

import "fmt"

type LookupKind string

const (
	// LookupTransport сетевая ошибка или статус ответа не 2xx
	LookupTransport LookupKind = "transport"
	// LookupRejected сервис ответил success=false
	LookupRejected LookupKind = "rejected"
	// LookupMalformed ответ не соответствует контракту
	LookupMalformed LookupKind = "malformed response"
)

// LookupError ошибка обращения к удалённому сервису QR-кодов
type LookupError struct {
	Kind    LookupKind
	Status  int
	Message string
	Err     error
}

func (e *LookupError) Error() string {
	msg := "qrcode lookup " + string(e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
