package domain

import "github.com/shopspring/decimal"

type GarmentType string

const (
	GarmentShirt        GarmentType = "shirt"
	GarmentTrouser      GarmentType = "trouser"
	GarmentSuit         GarmentType = "suit"
	GarmentDress        GarmentType = "dress"
	GarmentDuvet        GarmentType = "duvet"
	GarmentCurtain      GarmentType = "curtain"
	GarmentBedsheet     GarmentType = "bedsheet"
	GarmentTowel        GarmentType = "towel"
	GarmentSkirt        GarmentType = "skirt"
	GarmentUnderwear    GarmentType = "underwear"
	GarmentBlanket      GarmentType = "blanket"
	GarmentJacket       GarmentType = "jacket"
	GarmentNativeAttire GarmentType = "native_attire"
	GarmentOther        GarmentType = "other"
)

func (g GarmentType) Valid() bool {
	switch g {
	case GarmentShirt, GarmentTrouser, GarmentSuit, GarmentDress, GarmentDuvet,
		GarmentCurtain, GarmentBedsheet, GarmentTowel, GarmentSkirt, GarmentUnderwear,
		GarmentBlanket, GarmentJacket, GarmentNativeAttire, GarmentOther:
		return true
	}
	return false
}

// Pricing is one row of a service's pricing table.
// ExpressPrice wins over ExpressMultiplier when both are set.
type Pricing struct {
	GarmentType       GarmentType     `json:"garmentType"`
	StandardPrice     decimal.Decimal `json:"standardPrice"`
	ExpressPrice      decimal.Decimal `json:"expressPrice"`
	ExpressMultiplier decimal.Decimal `json:"expressMultiplier"`
}

type Service struct {
	ID                 string    `json:"_id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	ServiceType        string    `json:"serviceType"`
	IsExpressAvailable bool      `json:"isExpressAvailable"`
	IsActive           bool      `json:"isActive"`
	Pricing            []Pricing `json:"pricing"`
}

// PriceFor returns the pricing row for the garment type, if the service lists it.
func (s Service) PriceFor(garment GarmentType) (Pricing, bool) {
	for _, p := range s.Pricing {
		if p.GarmentType == garment {
			return p, true
		}
	}
	return Pricing{}, false
}

// Catalog indexes services by ID.
type Catalog map[string]Service

func NewCatalog(services []Service) Catalog {
	c := make(Catalog, len(services))
	for _, s := range services {
		c[s.ID] = s
	}
	return c
}

// Lookup resolves the pricing row for a (service, garment) pair.
func (c Catalog) Lookup(serviceID string, garment GarmentType) (Service, Pricing, bool) {
	s, ok := c[serviceID]
	if !ok {
		return Service{}, Pricing{}, false
	}
	p, ok := s.PriceFor(garment)
	if !ok {
		return s, Pricing{}, false
	}
	return s, p, true
}
