package types

import "time"

// MemberRow представляет запись в таблице members
type MemberRow struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Subscription string    `json:"subscription" db:"subscription"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CredentialRow представляет запись в таблице qr_codes
type CredentialRow struct {
	ID        string    `json:"id" db:"id"`
	MemberID  string    `json:"member_id" db:"member_id"`
	Number    string    `json:"number" db:"number"`
	Version   string    `json:"version" db:"version"`
	Type      string    `json:"type" db:"type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	LastUsed  time.Time `json:"last_used" db:"last_used"`
}
