package enums

// OrderDecision represents the decision a farmer can take on a pending order.
type OrderDecision string

const (
	OrderDecisionAccept OrderDecision = "accept"
	OrderDecisionReject OrderDecision = "reject"
)

// TargetStatus maps a decision to the status it produces.
func (d OrderDecision) TargetStatus() (OrderStatus, bool) {
	switch d {
	case OrderDecisionAccept:
		return OrderStatusAccepted, true
	case OrderDecisionReject:
		return OrderStatusRejected, true
	default:
		return "", false
	}
}
