package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Part enumerates the component types bought from parts suppliers.
type Part int

const (
	PartScreen Part = iota + 1
	PartCase
	PartElectronics
)

// Parts lists every part type in a stable order.
var Parts = []Part{PartScreen, PartCase, PartElectronics}

func (p Part) String() string {
	switch p {
	case PartScreen:
		return "screens"
	case PartCase:
		return "cases"
	case PartElectronics:
		return "electronics"
	default:
		return fmt.Sprintf("part(%d)", int(p))
	}
}

// ParsePart resolves a part by its wire name.
func ParsePart(s string) (Part, error) {
	for _, p := range Parts {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}
	return 0, WrapError(ErrCodeInvalid, "unknown part", fmt.Errorf("%q", s))
}

// Recipe maps each part to the units consumed per produced phone.
type Recipe map[Part]int

// Product is a phone model we manufacture and sell.
type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Recipe Recipe          `json:"recipe,omitempty"`
}
