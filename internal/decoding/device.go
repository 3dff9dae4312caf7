package decoding

// Device holds what the engine needs to know about a device: its declared
// sensors (in declaration order) and its decoding configuration. A nil
// Config means the device has no decoding configuration.
type Device struct {
	ID      string
	Sensors []Sensor
	Config  Config
}
