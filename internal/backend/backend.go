package backend

import "github.com/sensebox/ttn-osem-integration/internal/models"

// Uplink is the interface of an uplink backend.
// An uplink backend receives the uplink messages of the LoRaWAN network.
type Uplink interface {
	UplinkChan() chan models.Uplink // channel containing the received uplinks
	Close() error                   // close the uplink backend
}
