package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

const codecVersion = 1

var ErrCorrupt = errors.New("corrupt cart state")

type persisted struct {
	Version int    `json:"version"`
	Items   []Line `json:"items"`
}

// Encode serializes the cart for durable storage.
func Encode(c *Cart) ([]byte, error) {
	return json.Marshal(persisted{Version: codecVersion, Items: c.Lines()})
}

// Decode restores a cart written by Encode. Structurally invalid state is
// reported as ErrCorrupt.
func Decode(data []byte) (*Cart, error) {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if p.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, p.Version)
	}

	seen := make(map[Key]struct{}, len(p.Items))
	for i, l := range p.Items {
		if l.Product.ID == 0 || l.Size == "" || l.Quantity < 1 || l.SelectedPrice < 0 {
			return nil, fmt.Errorf("%w: invalid line %d", ErrCorrupt, i)
		}
		if _, dup := seen[l.key()]; dup {
			return nil, fmt.Errorf("%w: duplicate line %d", ErrCorrupt, i)
		}
		seen[l.key()] = struct{}{}
	}

	return &Cart{lines: p.Items}, nil
}

// Load is Decode that never fails: empty or corrupt state yields an empty
// cart. The returned error, if any, is for logging only.
func Load(data []byte) (*Cart, error) {
	if len(data) == 0 {
		return New(), nil
	}
	c, err := Decode(data)
	if err != nil {
		return New(), err
	}
	return c, nil
}
