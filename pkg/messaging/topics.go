package messaging

import "fmt"

type ChangeTopic string

const (
	// SearchTracked carries search and session events from the portal.
	SearchTracked ChangeTopic = "tracking"
)

func getName(prefix string, topic ChangeTopic) string {
	return fmt.Sprintf("%s_%s", prefix, topic)
}
