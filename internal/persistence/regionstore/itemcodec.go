package regionstore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"enchantedblocks.dev/internal/sim/host"
)

// Item stacks travel inside block records as CBOR. Canonical encoding keeps
// the bytes stable for a given stack, so unchanged records do not churn the
// region file between saves.
var (
	itemEnc cbor.EncMode
	itemDec cbor.DecMode
)

func init() {
	var err error
	itemEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	itemDec, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

type itemWire struct {
	Material   string         `cbor:"1,keyasint"`
	Amount     int            `cbor:"2,keyasint"`
	Data       int16          `cbor:"3,keyasint,omitempty"`
	Damage     int            `cbor:"4,keyasint,omitempty"`
	RepairCost int            `cbor:"5,keyasint,omitempty"`
	Name       string         `cbor:"6,keyasint,omitempty"`
	Enchants   map[string]int `cbor:"7,keyasint,omitempty"`
}

// EncodeItem serializes a stack. Nil encodes to an empty slice, which
// DecodeItem maps back to nil.
func EncodeItem(s *host.ItemStack) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	w := itemWire{
		Material:   string(s.Material),
		Amount:     s.Amount,
		Data:       s.Data,
		Damage:     s.Damage,
		RepairCost: s.RepairCost,
		Name:       s.Name,
	}
	if len(s.Enchants) > 0 {
		w.Enchants = make(map[string]int, len(s.Enchants))
		for k, v := range s.Enchants {
			w.Enchants[string(k)] = v
		}
	}
	out, err := itemEnc.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode item %s: %w", s.Material, err)
	}
	return out, nil
}

func DecodeItem(raw []byte) (*host.ItemStack, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var w itemWire
	if err := itemDec.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	s := &host.ItemStack{
		Material:   host.Material(w.Material),
		Amount:     w.Amount,
		Data:       w.Data,
		Damage:     w.Damage,
		RepairCost: w.RepairCost,
		Name:       w.Name,
	}
	if len(w.Enchants) > 0 {
		s.Enchants = make(map[host.Enchant]int, len(w.Enchants))
		for k, v := range w.Enchants {
			s.Enchants[host.Enchant(k)] = v
		}
	}
	return s, nil
}
