package store

import "fmt"

const (
	pendingKey = "jobs:pending"
	activeKey  = "jobs:active"
)

func JobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
