package devices

// Event topics published by the devices module.
const (
	TopicDeviceCreated   = "devices.device.created"
	TopicDeviceUpdated   = "devices.device.updated"
	TopicDeviceDeleted   = "devices.device.deleted"
	TopicDeviceActivated = "devices.device.activated"
	TopicStatusChanged   = "devices.status.changed"
)

// StatusEvent is the payload for TopicStatusChanged events.
type StatusEvent struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}
