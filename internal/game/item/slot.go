package item

import "fmt"

// Slot identifies a gear slot an item can occupy.
type Slot string

const (
	// SlotMainHand is the weapon slot.
	SlotMainHand Slot = "main_hand"
	// SlotOffHand is the shield slot, only used by jobs that carry one.
	SlotOffHand Slot = "off_hand"
	SlotHead    Slot = "head"
	SlotBody    Slot = "body"
	SlotHands   Slot = "hands"
	SlotLegs    Slot = "legs"
	SlotFeet    Slot = "feet"
	SlotEars    Slot = "ears"
	SlotNeck    Slot = "neck"
	SlotWrists  Slot = "wrists"
	// SlotRing1 and SlotRing2 are interchangeable: a ring fits either.
	SlotRing1 Slot = "ring_1"
	SlotRing2 Slot = "ring_2"
)

// AllSlots lists every slot in display order.
var AllSlots = []Slot{
	SlotMainHand, SlotOffHand,
	SlotHead, SlotBody, SlotHands, SlotLegs, SlotFeet,
	SlotEars, SlotNeck, SlotWrists, SlotRing1, SlotRing2,
}

var slotDisplayNames = map[Slot]string{
	SlotMainHand: "Main Hand",
	SlotOffHand:  "Off Hand",
	SlotHead:     "Head",
	SlotBody:     "Body",
	SlotHands:    "Hands",
	SlotLegs:     "Legs",
	SlotFeet:     "Feet",
	SlotEars:     "Ears",
	SlotNeck:     "Neck",
	SlotWrists:   "Wrists",
	SlotRing1:    "Ring (Left)",
	SlotRing2:    "Ring (Right)",
}

// String returns the human-readable slot label, or the raw identifier if unknown.
func (s Slot) String() string {
	if label, ok := slotDisplayNames[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is one of AllSlots.
func (s Slot) Valid() bool {
	_, ok := slotDisplayNames[s]
	return ok
}

// Partner returns the interchangeable partner of s.
//
// Postcondition: ok is true iff s belongs to a slot pair; then Partner(partner) == s.
func (s Slot) Partner() (partner Slot, ok bool) {
	switch s {
	case SlotRing1:
		return SlotRing2, true
	case SlotRing2:
		return SlotRing1, true
	}
	return "", false
}

// ParseSlot converts a slot identifier into a Slot.
//
// Postcondition: Returns a valid Slot or a non-nil error.
func ParseSlot(raw string) (Slot, error) {
	s := Slot(raw)
	if !s.Valid() {
		return "", fmt.Errorf("item: unknown slot %q", raw)
	}
	return s, nil
}
