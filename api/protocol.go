package api

const (
	taskBodyMaxSize = 64 * 1024 // 64 KiB

	headerNextPageToken  = "X-Next-Page-Token"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
)
