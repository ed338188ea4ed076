package model

import "encoding/json"

type QRVersion string

const (
	QRVersionQR1 QRVersion = "QR1"
	QRVersionQR2 QRVersion = "QR2"
)

func (v QRVersion) IsValid() bool {
	return v == QRVersionQR1 || v == QRVersionQR2
}

type CredentialType string

const (
	CredentialTypeMember CredentialType = "member"
	CredentialTypeGuest  CredentialType = "guest"
)

type SubscriptionTier string

const (
	SubscriptionTierSimple   SubscriptionTier = "Simple"
	SubscriptionTierStarter  SubscriptionTier = "Starter"
	SubscriptionTierUltimate SubscriptionTier = "Ultimate"
)

func (s SubscriptionTier) IsValid() bool {
	switch s {
	case SubscriptionTierSimple, SubscriptionTierStarter, SubscriptionTierUltimate:
		return true
	}
	return false
}

// AllowsGuests сообщает, можно ли привязывать гостевые QR-коды к абонементу
func (s SubscriptionTier) AllowsGuests() bool {
	return s == SubscriptionTierUltimate
}

// MaxGuestCredentials ограничение на количество гостевых QR-кодов у одного участника
const MaxGuestCredentials = 5

// Identity разрешённый QR-код: идентификатор, номер участника и версия
type Identity struct {
	ID      string    `json:"id"`
	Number  string    `json:"number"`
	Version QRVersion `json:"version"`
}

func (i Identity) GenerateParams() GenerateParams {
	return GenerateParams{ID: i.ID, Number: i.Number, Version: i.Version}
}

// ScanPayload сырые поля отсканированного QR-кода до проверки удалённым сервисом.
// Подпись и временная метка передаются дальше без изменений.
type ScanPayload struct {
	ID        string      `json:"id"`
	Signature string      `json:"sg"`
	Timestamp json.Number `json:"t"`
	Version   QRVersion   `json:"v"`
}

func (p ScanPayload) ReverseParams() ReverseParams {
	return ReverseParams{ID: p.ID, Signature: p.Signature, Timestamp: p.Timestamp, Version: p.Version}
}

func (p ScanPayload) RegenerateParams() RegenerateParams {
	return RegenerateParams{ID: p.ID, Signature: p.Signature, Timestamp: p.Timestamp, Version: p.Version}
}

type GenerateParams struct {
	ID      string
	Number  string
	Version QRVersion
}

type RegenerateParams struct {
	ID        string
	Signature string
	Timestamp json.Number
	Version   QRVersion
}

type ReverseParams struct {
	ID        string      `json:"id"`
	Signature string      `json:"sg"`
	Timestamp json.Number `json:"t"`
	Version   QRVersion   `json:"v"`
}

type Member struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Subscription SubscriptionTier `json:"subscription"`
	CreatedAt    string           `json:"createdAt"`
}

type Credential struct {
	ID        string         `json:"id"`
	MemberID  string         `json:"memberId"`
	Number    string         `json:"number"`
	Version   QRVersion      `json:"version"`
	Type      CredentialType `json:"type"`
	CreatedAt string         `json:"createdAt"`
	LastUsed  string         `json:"lastUsed"`
}

func (c *Credential) Identity() Identity {
	return Identity{ID: c.ID, Number: c.Number, Version: c.Version}
}

// MemberDetails участник вместе с основным и гостевыми QR-кодами
type MemberDetails struct {
	Member     *Member       `json:"member"`
	Credential *Credential   `json:"credential"`
	Guests     []*Credential `json:"guests"`
}

// CredentialSeed QR-код, готовый к сохранению
type CredentialSeed struct {
	Identity
	Type  CredentialType `json:"type"`
	Label string         `json:"label"`
}

type MemberCreationRequest struct {
	Name         string           `json:"name"`
	Subscription SubscriptionTier `json:"subscription"`
	Credentials  []CredentialSeed `json:"credentials"`
}

// MemberForm данные формы добавления участника до сборки запроса
type MemberForm struct {
	Name         string           `json:"name"`
	Subscription SubscriptionTier `json:"subscription"`
	Member       *Identity        `json:"member"`
	Guests       []Identity       `json:"guests"`
}

// MemberDraft черновик формы, заполненный по результатам сканирования
type MemberDraft struct {
	SessionID    string           `json:"sessionId"`
	Name         string           `json:"name"`
	Subscription SubscriptionTier `json:"subscription"`
	Member       *Identity        `json:"member"`
}

type QRImage struct {
	ContentType string
	Data        []byte
}

type MemberEventType string

const (
	MemberEventCreated MemberEventType = "created"
	MemberEventDeleted MemberEventType = "deleted"
)

type MemberEvent struct {
	Type         MemberEventType  `json:"type"`
	MemberID     string           `json:"member_id"`
	Name         string           `json:"name,omitempty"`
	Subscription SubscriptionTier `json:"subscription,omitempty"`
	Credentials  int              `json:"credentials,omitempty"`
}
