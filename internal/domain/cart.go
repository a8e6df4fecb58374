package domain

import "time"

type LineKey struct {
	ServiceID   string
	GarmentType GarmentType
}

type CartLine struct {
	ServiceID   string      `json:"service_id"`
	GarmentType GarmentType `json:"garment_type"`
	Quantity    int         `json:"quantity"`
	IsExpress   bool        `json:"is_express"`
	Notes       string      `json:"notes,omitempty"`
	// Quoted is the price shown when the line was added. Totals never read it.
	Quoted *Pricing `json:"quoted,omitempty"`
}

func (l CartLine) Key() LineKey {
	return LineKey{ServiceID: l.ServiceID, GarmentType: l.GarmentType}
}

type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "09:00-12:00"
	TimeSlotMidday    TimeSlot = "12:00-15:00"
	TimeSlotAfternoon TimeSlot = "15:00-18:00"
	TimeSlotEvening   TimeSlot = "18:00-21:00"
)

func (t TimeSlot) Valid() bool {
	switch t {
	case TimeSlotMorning, TimeSlotMidday, TimeSlotAfternoon, TimeSlotEvening:
		return true
	}
	return false
}

const PickupDateLayout = "2006-01-02"

// OrderDraft accumulates the selections of one order-creation flow.
type OrderDraft struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	IdempotencyKey    string     `json:"idempotency_key"`
	Items             []CartLine `json:"items"`
	PickupDate        string     `json:"pickup_date,omitempty"`
	PickupTimeSlot    TimeSlot   `json:"pickup_time_slot,omitempty"`
	PickupAddressID   string     `json:"pickup_address_id,omitempty"`
	DeliveryAddressID string     `json:"delivery_address_id,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
