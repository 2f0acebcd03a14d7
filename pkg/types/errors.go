package types

import "errors"

var (
	// ErrInsufficientData K线数量不足，本轮跳过该交易对
	ErrInsufficientData = errors.New("insufficient data")

	// ErrRateLimited 数据源限频，可重试
	ErrRateLimited = errors.New("rate limited")

	// ErrFetchExhausted 限频重试次数用尽
	ErrFetchExhausted = errors.New("fetch retries exhausted")

	// ErrDeliveryTransient 通知发送的临时性错误，可重试
	ErrDeliveryTransient = errors.New("transient delivery failure")

	// ErrDeliveryPermanent 通知发送的永久性错误，不再重试
	ErrDeliveryPermanent = errors.New("permanent delivery failure")

	// ErrDeliveryExhausted 通知重试次数用尽，本轮预警丢失
	ErrDeliveryExhausted = errors.New("delivery retries exhausted")
)
