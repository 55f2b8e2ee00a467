package catalog

import (
	apperrors "github.com/menta2k/product-compositor/internal/errors"
)

// Selections tracks which products are selected, in the order they were
// picked, together with uploaded accessory cutouts.
type Selections struct {
	order       []string
	accessories map[string][]byte
}

// NewSelections creates a selection with ids selected in order.
func NewSelections(ids ...string) *Selections {
	s := &Selections{accessories: make(map[string][]byte)}
	for _, id := range ids {
		s.Select(id)
	}
	return s
}

// IsSelected reports whether id is selected.
func (s *Selections) IsSelected(id string) bool {
	return s.index(id) >= 0
}

// Select adds id to the selection. Selecting twice is a no-op.
func (s *Selections) Select(id string) {
	if !s.IsSelected(id) {
		s.order = append(s.order, id)
	}
}

// Toggle flips the selection state of id and returns the new state.
// Deselecting also drops any uploaded accessory for id.
func (s *Selections) Toggle(id string) bool {
	i := s.index(id)
	if i < 0 {
		s.order = append(s.order, id)
		return true
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.accessories, id)
	return false
}

// SetAccessory stores an uploaded cutout for id. Nil data removes it.
func (s *Selections) SetAccessory(id string, data []byte) {
	if s.accessories == nil {
		s.accessories = make(map[string][]byte)
	}
	if data == nil {
		delete(s.accessories, id)
		return
	}
	s.accessories[id] = data
}

// Accessory returns the uploaded cutout for id.
func (s *Selections) Accessory(id string) ([]byte, bool) {
	data, ok := s.accessories[id]
	return data, ok
}

// IDs returns the selected ids in selection order.
func (s *Selections) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of selected products.
func (s *Selections) Len() int {
	return len(s.order)
}

// Validate checks that something is selected and that every selected product
// needing a part image has an upload or a default. Ids unknown to c are
// ignored.
func (s *Selections) Validate(c *Catalog) error {
	if len(s.order) == 0 {
		return apperrors.NewValidationError("select at least one product", nil)
	}
	for _, id := range s.order {
		p, ok := c.Get(id)
		if !ok || !p.NeedsPartImage {
			continue
		}
		if _, uploaded := s.accessories[id]; uploaded || p.DefaultPartImage != "" {
			continue
		}
		return apperrors.NewValidationError("part image required for "+p.Title, nil).WithItem(id)
	}
	return nil
}

func (s *Selections) index(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}
