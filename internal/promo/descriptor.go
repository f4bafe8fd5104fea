package promo

// Descriptor is the promotion attached to a cart.
type Descriptor struct {
	Code       Code    `json:"code"`
	Selections []int64 `json:"selections"`
	Label      string  `json:"label"`
}

// NewDescriptor builds a descriptor for code with the fixed offer label.
func NewDescriptor(code Code, selections ...int64) Descriptor {
	d := Descriptor{Code: code, Selections: append([]int64(nil), selections...)}
	if def, ok := Lookup(code); ok {
		d.Label = def.Label
	}
	return d
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	d.Selections = append([]int64(nil), d.Selections...)
	return d
}

// ResolvesTo reports whether every selection is a distinct product with a
// quantity of at least one in quantities.
func (d Descriptor) ResolvesTo(quantities map[int64]int) bool {
	if len(d.Selections) == 0 {
		return false
	}
	if _, ok := Lookup(d.Code); !ok {
		return false
	}
	seen := make(map[int64]struct{}, len(d.Selections))
	for _, id := range d.Selections {
		if id <= 0 {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
		if quantities[id] < 1 {
			return false
		}
	}
	return true
}
