package domain

import "fmt"

// Status is a lifecycle stage shared by orders, parts purchases and machine purchases.
type Status string

const (
	StatusPendingPayment            Status = "pending_payment"
	StatusPendingStock              Status = "pending_stock"
	StatusPendingDeliveryRequest    Status = "pending_delivery_request"
	StatusPendingDeliveryPayment    Status = "pending_delivery_payment"
	StatusPendingDeliveryCollection Status = "pending_delivery_collection"
	StatusPendingDeliveryDropOff    Status = "pending_delivery_drop_off"
	StatusShipped                   Status = "shipped"
	StatusReceived                  Status = "received"
	StatusCancelled                 Status = "cancelled"
)

// Kind identifies one of the three transaction families.
type Kind string

const (
	KindOrder           Kind = "order"
	KindPartsPurchase   Kind = "parts_purchase"
	KindMachinePurchase Kind = "machine_purchase"
)

// ParseKind accepts the wire names used by the query surface.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOrder, KindPartsPurchase, KindMachinePurchase:
		return Kind(s), nil
	}
	return "", WrapError(ErrCodeInvalid, "unknown transaction kind", fmt.Errorf("%q", s))
}

// Pipeline is the ordered stage list of one transaction kind.
type Pipeline struct {
	Kind        Kind
	Stages      []Status
	Cancellable []Status
}

var (
	OrderPipeline = Pipeline{
		Kind: KindOrder,
		Stages: []Status{
			StatusPendingPayment,
			StatusPendingStock,
			StatusPendingDeliveryRequest,
			StatusPendingDeliveryPayment,
			StatusPendingDeliveryCollection,
			StatusShipped,
		},
		Cancellable: []Status{StatusPendingPayment},
	}

	PartsPurchasePipeline = Pipeline{
		Kind: KindPartsPurchase,
		Stages: []Status{
			StatusPendingPayment,
			StatusPendingDeliveryRequest,
			StatusPendingDeliveryPayment,
			StatusPendingDeliveryDropOff,
			StatusReceived,
		},
		Cancellable: []Status{StatusPendingPayment},
	}

	MachinePurchasePipeline = Pipeline{
		Kind: KindMachinePurchase,
		Stages: []Status{
			StatusPendingPayment,
			StatusPendingDeliveryRequest,
			StatusPendingDeliveryPayment,
			StatusPendingDeliveryDropOff,
			StatusReceived,
		},
	}
)

// PipelineFor returns the pipeline of the given kind.
func PipelineFor(kind Kind) Pipeline {
	switch kind {
	case KindPartsPurchase:
		return PartsPurchasePipeline
	case KindMachinePurchase:
		return MachinePurchasePipeline
	default:
		return OrderPipeline
	}
}

// Rank is the position of s in the pipeline, or -1 when s is not a stage.
// Cancelled ranks after every stage.
func (p Pipeline) Rank(s Status) int {
	if s == StatusCancelled {
		return len(p.Stages)
	}
	for i, stage := range p.Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Initial is the status new transactions start in.
func (p Pipeline) Initial() Status {
	return p.Stages[0]
}

// Final is the fulfilled terminal stage.
func (p Pipeline) Final() Status {
	return p.Stages[len(p.Stages)-1]
}

// Next returns the stage following s.
func (p Pipeline) Next(s Status) (Status, bool) {
	i := p.Rank(s)
	if i < 0 || i >= len(p.Stages)-1 {
		return "", false
	}
	return p.Stages[i+1], true
}

func (p Pipeline) IsTerminal(s Status) bool {
	return s == StatusCancelled || s == p.Final()
}

// IsOpen reports whether s is a known non-terminal stage.
func (p Pipeline) IsOpen(s Status) bool {
	return p.Rank(s) >= 0 && !p.IsTerminal(s)
}

// OpenStatuses lists every non-terminal stage in order.
func (p Pipeline) OpenStatuses() []Status {
	return append([]Status(nil), p.Stages[:len(p.Stages)-1]...)
}

// CanTransition validates a single move: one stage forward, or to Cancelled
// from a cancellable stage.
func (p Pipeline) CanTransition(from, to Status) error {
	if to == StatusCancelled {
		for _, s := range p.Cancellable {
			if s == from {
				return nil
			}
		}
		return WrapError(ErrCodeConflict, ErrIllegalTransition.Message,
			fmt.Errorf("%s: %s cannot be cancelled", p.Kind, from))
	}
	if next, ok := p.Next(from); ok && next == to {
		return nil
	}
	return WrapError(ErrCodeConflict, ErrIllegalTransition.Message,
		fmt.Errorf("%s: %s -> %s", p.Kind, from, to))
}
