package enums

type DeadLetterReason string

const (
	DeadLetterReasonMaxRetries   DeadLetterReason = "max_retries"
	DeadLetterReasonNonRetryable DeadLetterReason = "non_retryable"
)

var validDeadLetterReasons = []DeadLetterReason{
	DeadLetterReasonMaxRetries,
	DeadLetterReasonNonRetryable,
}

func (r DeadLetterReason) IsValid() bool {
	for _, candidate := range validDeadLetterReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
