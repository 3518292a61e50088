package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Language struct {
	bun.BaseModel `bun:"table:languages,alias:l"`

	ID             string    `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	IsoCode        string    `bun:",nullzero" json:"iso_code"`
	Name           string    `bun:",nullzero" json:"name"`
	EnglishName    *string   `json:"english_name,omitempty"`
	EthnologueCode *string   `json:"ethnologue_code,omitempty"`
	UsageCount     int       `json:"usage_count"`
}
