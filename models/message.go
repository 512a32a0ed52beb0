package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractedPropertyData is the structured result of running the field
// extractor over one message. It is stored verbatim as the message's
// extracted_data payload.
type ExtractedPropertyData struct {
	PropertyType       PropertyType    `json:"propertyType,omitempty"`
	TransactionType    TransactionType `json:"transactionType,omitempty"`
	AreaNumber         *int            `json:"areaNumber,omitempty"`
	NeighborhoodNumber *int            `json:"neighborhoodNumber,omitempty"`
	Area               *int            `json:"area,omitempty"`
	FloorNumber        *int            `json:"floorNumber,omitempty"`
	InstallmentAmount  *int64          `json:"installmentAmount,omitempty"`
	TotalPrice         *int64          `json:"totalPrice,omitempty"`
	YearsPaid          *int            `json:"yearsPaid,omitempty"`
	YearsRemaining     *int            `json:"yearsRemaining,omitempty"`
	Finishing          string          `json:"finishing,omitempty"`
	Features           []string        `json:"features"`
	ContactNumber      string          `json:"contactNumber,omitempty"`
	Description        string          `json:"description"`
}

// JSON returns the payload as stored in whatsapp_messages.extracted_data.
func (d *ExtractedPropertyData) JSON() json.RawMessage {
	if d == nil {
		return nil
	}
	data, _ := json.Marshal(d)
	return data
}

// RawMessage is one segmented chat message as persisted
type RawMessage struct {
	ID            uuid.UUID              `json:"id" db:"id"`
	Fingerprint   string                 `json:"fingerprint" db:"fingerprint"`
	MessageDate   time.Time              `json:"message_date" db:"message_date"`
	SenderNumber  string                 `json:"sender_number" db:"sender_number"`
	SenderName    string                 `json:"sender_name" db:"sender_name"`
	MessageText   string                 `json:"message_text" db:"message_text"`
	Processed     bool                   `json:"processed" db:"processed"`
	ExtractedData *ExtractedPropertyData `json:"extracted_data" db:"extracted_data"`
	PropertyID    *uuid.UUID             `json:"property_id" db:"property_id"`
	UserID        *uuid.UUID             `json:"user_id" db:"user_id"`
	SourceFile    string                 `json:"source_file" db:"source_file"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}
