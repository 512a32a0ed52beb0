package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PropertyType string

const (
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeVilla      PropertyType = "villa"
	PropertyTypeWarehouse  PropertyType = "warehouse"
	PropertyTypeOffice     PropertyType = "office"
	PropertyTypeShop       PropertyType = "shop"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeOther      PropertyType = "other"
)

type TransactionType string

const (
	TransactionForSale TransactionType = "for_sale"
	TransactionForRent TransactionType = "for_rent"
	TransactionWanted  TransactionType = "wanted"
	TransactionSold    TransactionType = "sold"
	TransactionRented  TransactionType = "rented"
)

// IsOffer reports whether the transaction can produce a listing.
// wanted/sold/rented messages never do.
func (t TransactionType) IsOffer() bool {
	return t == TransactionForSale || t == TransactionForRent
}

// Property is a listing derived from one qualifying chat message
type Property struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Title              string          `json:"title" db:"title"`
	Description        string          `json:"description" db:"description"`
	Type               PropertyType    `json:"type" db:"type"`
	TransactionType    TransactionType `json:"transaction_type" db:"transaction_type"`
	AreaNumber         *int            `json:"area_number" db:"area_number"`
	NeighborhoodNumber *int            `json:"neighborhood_number" db:"neighborhood_number"`
	Area               *int            `json:"area" db:"area"` // square meters
	FloorNumber        *int            `json:"floor_number" db:"floor_number"`
	InstallmentAmount  *int64          `json:"installment_amount" db:"installment_amount"`
	TotalPrice         *int64          `json:"total_price" db:"total_price"`
	YearsPaid          *int            `json:"years_paid" db:"years_paid"`
	YearsRemaining     *int            `json:"years_remaining" db:"years_remaining"`
	Finishing          *string         `json:"finishing" db:"finishing"`
	ContactNumber      *string         `json:"contact_number" db:"contact_number"`
	Features           json.RawMessage `json:"features" db:"features"`
	DatePosted         time.Time       `json:"date_posted" db:"date_posted"`
	OwnerID            uuid.UUID       `json:"owner_id" db:"owner_id"`
	AgentID            *uuid.UUID      `json:"agent_id" db:"agent_id"`
	SourceMessageID    uuid.UUID       `json:"source_message_id" db:"source_message_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}
