package model

// DeliveryReason explains a DeliveryResult. Only DeliveryDelivered implies Delivered == true.
type DeliveryReason string

const (
	DeliveryDelivered      DeliveryReason = "delivered"
	DeliveryNoAddress      DeliveryReason = "no_address"
	DeliveryInvalidAddress DeliveryReason = "invalid_address"
	DeliveryChannelError   DeliveryReason = "channel_error"
)

// DeliveryResult is the outcome of a single best-effort notification. It is never persisted.
type DeliveryResult struct {
	Delivered bool           `json:"delivered"`
	Reason    DeliveryReason `json:"reason"`
}

func Delivered() DeliveryResult { return DeliveryResult{Delivered: true, Reason: DeliveryDelivered} }

func NotDelivered(reason DeliveryReason) DeliveryResult {
	return DeliveryResult{Delivered: false, Reason: reason}
}
