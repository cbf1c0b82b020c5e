package models

// DevicesResponse represents the outer wrapper of GET /ring_devices.
type DevicesResponse struct {
	Doorbots    []Device `json:"doorbots"`
	StickupCams []Device `json:"stickup_cams"`
}

// Device represents a single doorbell or stickup camera on the account.
type Device struct {
	ID          int64  `json:"id"`
	Description string `json:"description"` // the user-facing device name
	DeviceKind  string `json:"kind"`
	BatteryLife string `json:"battery_life"`
	Firmware    string `json:"firmware_version"`
	Address     string `json:"address"`
	Doorbell    bool   `json:"-"`
}
