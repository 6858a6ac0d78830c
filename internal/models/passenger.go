package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Passenger struct {
	bun.BaseModel `bun:"table:passengers"`

	ID        string    `bun:"id,pk" json:"id"`
	DNI       string    `bun:"dni,unique,notnull" json:"dni"`
	FirstName string    `bun:"first_name,notnull" json:"first_name"`
	LastNames string    `bun:"last_names,notnull" json:"last_names"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Buyer struct {
	DNI       string `json:"dni" validate:"required,len=8,numeric"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastNames string `json:"last_names" validate:"required,max=150"`
}
