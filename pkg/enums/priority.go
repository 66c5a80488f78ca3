package enums

import "fmt"

// Priority selects the queue a job is written to.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

const queueNamePrefix = "notifications."

// prioritiesInDrainOrder lists priorities from the first drained to the last.
var prioritiesInDrainOrder = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityNormal,
	PriorityLow,
}

func (p Priority) IsValid() bool {
	for _, candidate := range prioritiesInDrainOrder {
		if candidate == p {
			return true
		}
	}
	return false
}

// QueueName returns the queue backing the priority. Unknown priorities land on
// the normal queue.
func (p Priority) QueueName() string {
	if !p.IsValid() {
		return queueNamePrefix + string(PriorityNormal)
	}
	return queueNamePrefix + string(p)
}

func ParsePriority(value string) (Priority, error) {
	if value == "" {
		return PriorityNormal, nil
	}
	for _, candidate := range prioritiesInDrainOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", value)
}

// QueueNamesInDrainOrder returns queue names with critical first.
func QueueNamesInDrainOrder() []string {
	names := make([]string, 0, len(prioritiesInDrainOrder))
	for _, p := range prioritiesInDrainOrder {
		names = append(names, p.QueueName())
	}
	return names
}
