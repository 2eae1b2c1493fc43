package enums

import "slices"

// OutboxAggregateType mirrors aggregate_type_enum.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateWallet  OutboxAggregateType = "wallet"
	AggregateProduct OutboxAggregateType = "product"
	AggregateUser    OutboxAggregateType = "user"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateWallet, AggregateProduct, AggregateUser}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return parse("aggregate type", raw, aggregateTypes)
}

// OutboxEventType mirrors event_type_enum. Values are also the message
// event_type attribute seen by subscribers.
type OutboxEventType string

const (
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderDecided              OutboxEventType = "order_decided"
	EventOrderStatusChanged        OutboxEventType = "order_status_changed"
	EventWalletTransactionRecorded OutboxEventType = "wallet_transaction_recorded"
	EventPasswordResetRequested    OutboxEventType = "password_reset_requested"
)

var eventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderDecided,
	EventOrderStatusChanged,
	EventWalletTransactionRecorded,
	EventPasswordResetRequested,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parse("event type", raw, eventTypes)
}
