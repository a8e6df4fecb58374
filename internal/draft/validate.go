package draft

import (
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
)

// Validate checks the draft on its own: lines, pickup schedule and the
// address selections. It needs no network and runs before anything remote.
func Validate(d *domain.OrderDraft) error {
	ve := &apperr.ValidationError{}

	if len(d.Items) == 0 {
		ve.Add("items", "add at least one item to your order")
	}

	switch {
	case d.PickupDate == "":
		ve.Add("pickupDate", "pickup date is required")
	default:
		if _, err := time.Parse(domain.PickupDateLayout, d.PickupDate); err != nil {
			ve.Add("pickupDate", "pickup date must be formatted as YYYY-MM-DD")
		}
	}

	switch {
	case d.PickupTimeSlot == "":
		ve.Add("pickupTimeSlot", "pickup time slot is required")
	case !d.PickupTimeSlot.Valid():
		ve.Add("pickupTimeSlot", "pickup time slot is not offered")
	}

	if d.PickupAddressID == "" {
		ve.Add("pickupAddress", "please select a pickup address")
	}
	if d.DeliveryAddressID == "" {
		ve.Add("deliveryAddress", "please select a delivery address")
	}

	if ve.Empty() {
		return nil
	}
	return ve
}

// ValidateAddress checks that the user's profile carries the address backing
// both pickup and delivery.
func ValidateAddress(profile *domain.Profile) error {
	if profile != nil && !profile.Address.IsZero() {
		return nil
	}
	ve := &apperr.ValidationError{}
	ve.Add("pickupAddress", "please add an address to your profile")
	ve.Add("deliveryAddress", "please add an address to your profile")
	return ve
}
