package evt

import (
	"github.com/asaskevich/EventBus"
)

const (
	// NodeStarted fires when a node begins serving. Parameter: role name, node address
	NodeStarted = "node:started"

	// NodeStopped fires when a node was stopped. Parameter: role name, node address
	NodeStopped = "node:stopped"

	// CaptureRecorded fires for every message an observer records. Parameter: observed address, direction
	CaptureRecorded = "capture:recorded"

	// ZoneSigned fires when the signer produced a signed zone. Parameter: zone name, algorithm name
	ZoneSigned = "signer:zoneSigned"

	// ApplicationStarted fires on start of the application. Parameter: version number, build time
	ApplicationStarted = "application:started"
)

// nolint
var evtBus = EventBus.New()

// Bus returns the global bus instance
func Bus() EventBus.Bus {
	return evtBus
}
