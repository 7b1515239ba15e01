package enums

import "fmt"

// MovementType classifies a ledger entry on an inventory item.
type MovementType string

const (
	MovementTypeIn       MovementType = "IN"
	MovementTypeOut      MovementType = "OUT"
	MovementTypeAdjust   MovementType = "ADJUST"
	MovementTypeTransfer MovementType = "TRANSFER"
)

var validMovementTypes = []MovementType{
	MovementTypeIn,
	MovementTypeOut,
	MovementTypeAdjust,
	MovementTypeTransfer,
}

func (m MovementType) String() string {
	return string(m)
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}

// MovementReferenceType names what caused a movement.
type MovementReferenceType string

const (
	ReferenceOrder       MovementReferenceType = "ORDER"
	ReferenceReservation MovementReferenceType = "RESERVATION"
	ReferenceManualAdd   MovementReferenceType = "MANUAL_ADD"
	ReferenceReturn      MovementReferenceType = "RETURN"
	ReferenceCycleCount  MovementReferenceType = "CYCLE_COUNT"
	ReferenceTransfer    MovementReferenceType = "TRANSFER"
	ReferenceAdjustment  MovementReferenceType = "ADJUSTMENT"
)

var validMovementReferenceTypes = []MovementReferenceType{
	ReferenceOrder,
	ReferenceReservation,
	ReferenceManualAdd,
	ReferenceReturn,
	ReferenceCycleCount,
	ReferenceTransfer,
	ReferenceAdjustment,
}

func (r MovementReferenceType) String() string {
	return string(r)
}

func (r MovementReferenceType) IsValid() bool {
	for _, candidate := range validMovementReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMovementReferenceType converts raw input into MovementReferenceType.
func ParseMovementReferenceType(value string) (MovementReferenceType, error) {
	for _, candidate := range validMovementReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement reference type %q", value)
}

// ReturnReason explains why stock left through the returns flow.
type ReturnReason string

const (
	ReturnReasonDefective ReturnReason = "defective"
	ReturnReasonExpired   ReturnReason = "expired"
	ReturnReasonDamage    ReturnReason = "damage"
	ReturnReasonWrongItem ReturnReason = "wrong_item"
	ReturnReasonOther     ReturnReason = "other"
)

var validReturnReasons = []ReturnReason{
	ReturnReasonDefective,
	ReturnReasonExpired,
	ReturnReasonDamage,
	ReturnReasonWrongItem,
	ReturnReasonOther,
}

func (r ReturnReason) IsValid() bool {
	for _, candidate := range validReturnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReturnReason converts raw input into ReturnReason.
func ParseReturnReason(value string) (ReturnReason, error) {
	for _, candidate := range validReturnReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return reason %q", value)
}
