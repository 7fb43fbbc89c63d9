package domain

import (
	"fmt"

	"github.com/nazeru/crm-orders-go/internal/lifecycle"
)

// Status codes of the current subscription schema.
const (
	StatusPresale   = 0
	StatusOrdered   = 1
	StatusExpansion = 2
	StatusChurned   = 3
)

// Status codes of the legacy retail schema, kept for deployments that
// still run the first product iteration.
const (
	RetailPendingPayment = 0
	RetailPaid           = 1
	RetailShipped        = 2
	RetailCompleted      = 3
	RetailCancelled      = 4
)

const (
	SchemaSubscription = "subscription"
	SchemaRetail       = "retail"
)

// SubscriptionSchema is the current order lifecycle:
// presale -> ordered -> expansion -> churned, deletable only in presale.
func SubscriptionSchema() lifecycle.Schema[int] {
	return mustSchema(SchemaSubscription,
		map[int]string{
			StatusPresale:   "售前",
			StatusOrdered:   "已订购",
			StatusExpansion: "扩容",
			StatusChurned:   "流失",
		},
		[]lifecycle.Rule[int]{
			{From: StatusPresale, To: StatusOrdered, Trigger: "place_order", SideEffect: lifecycle.EffectSetPayTime},
			{From: StatusOrdered, To: StatusExpansion, Trigger: "expand"},
			{From: StatusExpansion, To: StatusChurned, Trigger: "churn"},
		},
		[]int{StatusPresale},
	)
}

// RetailSchema is the legacy five-state lifecycle of the first iteration.
func RetailSchema() lifecycle.Schema[int] {
	return mustSchema(SchemaRetail,
		map[int]string{
			RetailPendingPayment: "待支付",
			RetailPaid:           "已支付",
			RetailShipped:        "已发货",
			RetailCompleted:      "已完成",
			RetailCancelled:      "已取消",
		},
		[]lifecycle.Rule[int]{
			{From: RetailPendingPayment, To: RetailPaid, Trigger: "pay", SideEffect: lifecycle.EffectSetPayTime},
			{From: RetailPaid, To: RetailShipped, Trigger: "ship"},
			{From: RetailShipped, To: RetailCompleted, Trigger: "complete"},
			{From: RetailPendingPayment, To: RetailCancelled, Trigger: "cancel"},
		},
		[]int{RetailPendingPayment},
	)
}

// SchemaByName selects the deployment's order schema.
func SchemaByName(name string) (lifecycle.Schema[int], error) {
	switch name {
	case SchemaSubscription, "":
		return SubscriptionSchema(), nil
	case SchemaRetail:
		return RetailSchema(), nil
	default:
		return lifecycle.Schema[int]{}, fmt.Errorf("unknown order schema %q", name)
	}
}

func mustSchema(name string, labels map[int]string, rules []lifecycle.Rule[int], deletable []int) lifecycle.Schema[int] {
	s, err := lifecycle.NewSchema(name, labels, rules, deletable)
	if err != nil {
		panic(err)
	}
	return s
}
