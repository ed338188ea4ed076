package service

import (
	"errors"
	"fmt"

	"qrcode_dashboard/internal/assembler"
	"qrcode_dashboard/internal/decoder"
	"qrcode_dashboard/internal/qrcode"
	"qrcode_dashboard/internal/repository"
	"qrcode_dashboard/internal/session"
)

const (
	OpCreateMember = "create member"
	OpDeleteMember = "delete member"
)

var ErrGuestsHidden = errors.New("guest credentials are only available with the Ultimate subscription")

// PersistenceError ошибка записи в хранилище. RolledBack означает, что
// уже созданные записи удалены и состояние хранилища не изменилось.
type PersistenceError struct {
	Op          string
	Err         error
	RolledBack  bool
	RollbackErr error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.RolledBack {
		return msg + " (rolled back)"
	}
	if e.RollbackErr != nil {
		return msg + fmt.Sprintf(" (rollback failed: %v)", e.RollbackErr)
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ImageError не удалось получить изображение QR-кода
type ImageError struct {
	Guest bool
	Err   error
}

func (e *ImageError) Error() string {
	return "failed to fetch qr code image: " + e.Err.Error()
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// UserMessage текст ошибки для пользователя панели
func UserMessage(err error) string {
	var (
		decodeErr      *decoder.DecodeError
		lookupErr      *qrcode.LookupError
		validationErr  *assembler.ValidationError
		persistenceErr *PersistenceError
		imageErr       *ImageError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationMessage(validationErr)
	case errors.As(err, &imageErr):
		if imageErr.Guest {
			return "Erreur lors de la génération du QR code invité. Veuillez réessayer."
		}
		return "Erreur lors de la génération du QR code. Veuillez réessayer."
	case errors.As(err, &decodeErr), errors.As(err, &lookupErr):
		return "QR code invalide ou mal formaté. Veuillez réessayer."
	case errors.As(err, &persistenceErr):
		if persistenceErr.Op == OpDeleteMember {
			return "Erreur lors de la suppression. Veuillez réessayer."
		}
		return "Erreur lors de l'ajout de l'utilisateur. Veuillez réessayer."
	case errors.Is(err, ErrGuestsHidden):
		return "Les QR codes invités sont réservés à l'abonnement Ultimate."
	case errors.Is(err, repository.ErrNotFound):
		return "Élément introuvable."
	case errors.Is(err, session.ErrSessionClosed):
		return "Le scan a été annulé."
	}
	return "Une erreur est survenue. Veuillez réessayer."
}

func validationMessage(err *assembler.ValidationError) string {
	switch err.Reason {
	case assembler.ReasonNoCredentials:
		return "Veuillez ajouter au moins un QR code"
	case assembler.ReasonNameRequired:
		return "Veuillez saisir le nom de l'adhérent"
	case assembler.ReasonGuestsNotAllowed:
		return "Les QR codes invités sont réservés à l'abonnement Ultimate."
	case assembler.ReasonTooManyGuests:
		return "Un adhérent ne peut pas avoir plus de 5 QR codes invités."
	}
	return "Formulaire invalide : " + err.Reason
}
