package ring

import (
	"context"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// Devices returns all doorbells and stickup cams on the account.
func (c *Client) Devices(ctx context.Context) ([]models.Device, error) {
	var respData models.DevicesResponse

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetResult(&respData).
		Get("/ring_devices")

	if cerr := classify(resp, err, "listing devices"); cerr != nil {
		return nil, cerr
	}

	devices := make([]models.Device, 0, len(respData.Doorbots)+len(respData.StickupCams))
	for _, d := range respData.Doorbots {
		d.Doorbell = true
		devices = append(devices, d)
	}
	devices = append(devices, respData.StickupCams...)

	return devices, nil
}
