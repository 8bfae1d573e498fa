package services

import domain "github.com/apexflow/api/internal/domain"

// Action enumerates the order-affecting operations gated by role policy.
type Action string

const (
	// ActionProgress advances an order one pipeline step.
	ActionProgress Action = "progress"
	// ActionAssign assigns or reassigns a picker.
	ActionAssign Action = "assign"
	// ActionReject marks an order rejected.
	ActionReject Action = "reject"
	// ActionEditItems mutates line quantities.
	ActionEditItems Action = "edit_items"
	// ActionEditPrices mutates line prices or applies discounts.
	ActionEditPrices Action = "edit_prices"
	// ActionEditRemarks replaces order remarks.
	ActionEditRemarks Action = "edit_remarks"
	// ActionSetInvoiceStatus updates the invoicing state.
	ActionSetInvoiceStatus Action = "set_invoice_status"
	// ActionDelete removes an order and its side records.
	ActionDelete Action = "delete"
	// ActionRecordPayment credits a customer balance.
	ActionRecordPayment Action = "record_payment"
	// ActionCreateReturn records a goods return.
	ActionCreateReturn Action = "create_return"
	// ActionRemoveStock removes units from the returned-stock aggregate.
	ActionRemoveStock Action = "remove_stock"
	// ActionAdjustStock applies a manual inventory adjustment.
	ActionAdjustStock Action = "adjust_stock"
)

// stationStatus maps each restricted role to the order status it works.
var stationStatus = map[domain.Role]domain.OrderStatus{
	domain.RolePicker:     domain.OrderStatusAssigned,
	domain.RoleChecker:    domain.OrderStatusPacked,
	domain.RoleDispatcher: domain.OrderStatusChecked,
}

// CanPerform decides whether the actor may run the given action against the
// order. Every entry point evaluates this same policy: restricted roles may
// only progress orders sitting at their own station, and a picker only orders
// assigned to them. Admin and manager are unrestricted.
func CanPerform(actor Actor, action Action, order Order) bool {
	if !actor.Role.Valid() {
		return false
	}
	if !actor.Role.Restricted() {
		return true
	}
	if action != ActionProgress {
		return false
	}

	station, ok := stationStatus[actor.Role]
	if !ok || order.Status != station {
		return false
	}
	if actor.Role == domain.RolePicker {
		return order.AssignedToID != nil && *order.AssignedToID == actor.ID
	}
	return true
}
