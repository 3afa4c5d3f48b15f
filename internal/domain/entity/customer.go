package entity

import "time"

// Customer representa un cliente (constructora, contratista o particular).
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Status    string // active, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}
