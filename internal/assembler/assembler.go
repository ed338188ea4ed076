package assembler

import (
	"fmt"
	"strings"

	"qrcode_dashboard/graph/model"
)

// ValidationError форма заполнена не полностью или с ошибками
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

const (
	ReasonNoCredentials       = "no credentials"
	ReasonNameRequired        = "name is required"
	ReasonUnknownSubscription = "unknown subscription"
	ReasonGuestsNotAllowed    = "guest credentials require the Ultimate subscription"
	ReasonTooManyGuests       = "too many guest credentials"
	ReasonIncomplete          = "incomplete credential"
	ReasonUnknownVersion      = "unknown credential version"
)

const MemberLabel = "Adhérent"

func GuestLabel(index int) string {
	return fmt.Sprintf("Invité #%d", index+1)
}

// GuestList гостевые QR-коды в порядке добавления.
// Добавление сверх лимита или для абонемента без гостей просто отклоняется.
type GuestList struct {
	subscription model.SubscriptionTier
	guests       []model.Identity
}

func NewGuestList(subscription model.SubscriptionTier) *GuestList {
	return &GuestList{subscription: subscription}
}

func (l *GuestList) CanAdd() bool {
	return l.subscription.AllowsGuests() && len(l.guests) < model.MaxGuestCredentials
}

// Refusal причина, по которой Add отклонит гостя, или nil
func (l *GuestList) Refusal(identity model.Identity) *ValidationError {
	switch {
	case !l.subscription.AllowsGuests():
		return &ValidationError{Reason: ReasonGuestsNotAllowed}
	case len(l.guests) >= model.MaxGuestCredentials:
		return &ValidationError{Reason: ReasonTooManyGuests}
	case strings.TrimSpace(identity.ID) == "" || strings.TrimSpace(identity.Number) == "":
		return &ValidationError{Reason: ReasonIncomplete}
	}
	return nil
}

// Add добавляет гостя. Без версии гостевой код считается QR1.
func (l *GuestList) Add(identity model.Identity) bool {
	if l.Refusal(identity) != nil {
		return false
	}
	if identity.Version == "" {
		identity.Version = model.QRVersionQR1
	}
	l.guests = append(l.guests, identity)
	return true
}

func (l *GuestList) Remove(index int) bool {
	if index < 0 || index >= len(l.guests) {
		return false
	}
	l.guests = append(l.guests[:index], l.guests[index+1:]...)
	return true
}

func (l *GuestList) Len() int {
	return len(l.guests)
}

func (l *GuestList) Guests() []model.Identity {
	out := make([]model.Identity, len(l.guests))
	copy(out, l.guests)
	return out
}

// Assemble собирает запрос на создание участника: сначала основной QR-код, затем гости.
// Ввода-вывода нет, сохранением занимается сервис.
func Assemble(name string, subscription model.SubscriptionTier, member *model.Identity, guests []model.Identity) (*model.MemberCreationRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Reason: ReasonNameRequired}
	}
	if !subscription.IsValid() {
		return nil, &ValidationError{Reason: ReasonUnknownSubscription}
	}
	if member == nil && len(guests) == 0 {
		return nil, &ValidationError{Reason: ReasonNoCredentials}
	}
	if len(guests) > 0 && !subscription.AllowsGuests() {
		return nil, &ValidationError{Reason: ReasonGuestsNotAllowed}
	}
	if len(guests) > model.MaxGuestCredentials {
		return nil, &ValidationError{Reason: ReasonTooManyGuests}
	}

	seeds := make([]model.CredentialSeed, 0, len(guests)+1)

	if member != nil {
		seed, err := newSeed(*member, model.CredentialTypeMember, model.QRVersionQR2, MemberLabel)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}

	for i, guest := range guests {
		seed, err := newSeed(guest, model.CredentialTypeGuest, model.QRVersionQR1, GuestLabel(i))
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}

	return &model.MemberCreationRequest{
		Name:         name,
		Subscription: subscription,
		Credentials:  seeds,
	}, nil
}

func newSeed(identity model.Identity, credentialType model.CredentialType, defaultVersion model.QRVersion, label string) (model.CredentialSeed, error) {
	identity.ID = strings.TrimSpace(identity.ID)
	identity.Number = strings.TrimSpace(identity.Number)
	if identity.ID == "" || identity.Number == "" {
		return model.CredentialSeed{}, &ValidationError{Reason: ReasonIncomplete}
	}
	if identity.Version == "" {
		identity.Version = defaultVersion
	}
	if !identity.Version.IsValid() {
		return model.CredentialSeed{}, &ValidationError{Reason: ReasonUnknownVersion}
	}

	return model.CredentialSeed{
		Identity: identity,
		Type:     credentialType,
		Label:    label,
	}, nil
}
