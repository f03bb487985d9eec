package enums

import "fmt"

// InventoryTransactionType maps to the inventory_transaction_type enum in Postgres.
type InventoryTransactionType string

const (
	InventoryTxnSale        InventoryTransactionType = "sale"
	InventoryTxnVoidRestore InventoryTransactionType = "void_restore"
	InventoryTxnAdjustment  InventoryTransactionType = "adjustment"
	InventoryTxnReceive     InventoryTransactionType = "receive"
	InventoryTxnTransferOut InventoryTransactionType = "transfer_out"
	InventoryTxnTransferIn  InventoryTransactionType = "transfer_in"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTxnSale,
	InventoryTxnVoidRestore,
	InventoryTxnAdjustment,
	InventoryTxnReceive,
	InventoryTxnTransferOut,
	InventoryTxnTransferIn,
}

// IsValid reports whether the value matches the canonical inventory transaction enum.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// GuardsOversell reports whether a mutation of this type must never drive
// stock negative. Manual types may go negative only with an explicit override.
func (t InventoryTransactionType) GuardsOversell() bool {
	return t == InventoryTxnSale || t == InventoryTxnTransferOut
}

// ParseInventoryTransactionType converts raw input into InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
