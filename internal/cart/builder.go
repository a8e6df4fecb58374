// Package cart turns add/remove interactions of the order-creation flow into a
// normalized list of order lines.
package cart

import "github.com/fjod/go_laundry/internal/domain"

// Builder holds the lines of one flow instance. It is not safe for concurrent
// use. Stored drafts are edited through draft.Store.Update, which serializes
// the builders of one draft.
type Builder struct {
	lines []domain.CartLine
}

func NewBuilder(lines []domain.CartLine) *Builder {
	b := &Builder{}
	for _, l := range lines {
		if l.Quantity > 0 {
			b.SetQuantity(l.ServiceID, l.GarmentType, b.quantity(l.Key())+l.Quantity, l.Quoted)
			b.SetExpress(l.ServiceID, l.GarmentType, l.IsExpress)
			b.SetNotes(l.ServiceID, l.GarmentType, l.Notes)
		}
	}
	return b
}

func (b *Builder) AddItem(serviceID string, garment domain.GarmentType, price *domain.Pricing) {
	if i := b.index(domain.LineKey{ServiceID: serviceID, GarmentType: garment}); i >= 0 {
		b.lines[i].Quantity++
		return
	}
	b.lines = append(b.lines, domain.CartLine{
		ServiceID:   serviceID,
		GarmentType: garment,
		Quantity:    1,
		IsExpress:   false,
		Quoted:      price,
	})
}

func (b *Builder) RemoveItem(serviceID string, garment domain.GarmentType) {
	i := b.index(domain.LineKey{ServiceID: serviceID, GarmentType: garment})
	if i < 0 {
		return
	}
	b.lines[i].Quantity--
	if b.lines[i].Quantity <= 0 {
		b.delete(i)
	}
}

func (b *Builder) SetQuantity(serviceID string, garment domain.GarmentType, quantity int, price *domain.Pricing) {
	i := b.index(domain.LineKey{ServiceID: serviceID, GarmentType: garment})
	if quantity <= 0 {
		if i >= 0 {
			b.delete(i)
		}
		return
	}
	if i >= 0 {
		b.lines[i].Quantity = quantity
		if price != nil {
			b.lines[i].Quoted = price
		}
		return
	}
	b.lines = append(b.lines, domain.CartLine{
		ServiceID:   serviceID,
		GarmentType: garment,
		Quantity:    quantity,
		Quoted:      price,
	})
}

func (b *Builder) SetExpress(serviceID string, garment domain.GarmentType, express bool) {
	if i := b.index(domain.LineKey{ServiceID: serviceID, GarmentType: garment}); i >= 0 {
		b.lines[i].IsExpress = express
	}
}

func (b *Builder) SetNotes(serviceID string, garment domain.GarmentType, notes string) {
	if i := b.index(domain.LineKey{ServiceID: serviceID, GarmentType: garment}); i >= 0 {
		b.lines[i].Notes = notes
	}
}

// Lines returns a copy of the lines in insertion order.
func (b *Builder) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *Builder) Len() int {
	return len(b.lines)
}

func (b *Builder) quantity(key domain.LineKey) int {
	if i := b.index(key); i >= 0 {
		return b.lines[i].Quantity
	}
	return 0
}

func (b *Builder) index(key domain.LineKey) int {
	for i, l := range b.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func (b *Builder) delete(i int) {
	b.lines = append(b.lines[:i], b.lines[i+1:]...)
}
