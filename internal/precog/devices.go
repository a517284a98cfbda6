package precog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// GetDevices возвращает полный список устройств
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.getJSON(ctx, "get devices", "/Devices/GetDeviceDetails", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// CreateDevice создаёт устройство. Форма должна пройти Validate.
func (c *Client) CreateDevice(ctx context.Context, form DeviceForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	return c.send(ctx, "create device", resty.MethodPost, "/Devices/CreateDevice", form.query(), nil)
}

// UpdateDevice изменяет устройство
func (c *Client) UpdateDevice(ctx context.Context, form DeviceForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	return c.send(ctx, "update device", resty.MethodPut, "/Devices/UpdateDevice", form.query(), nil)
}

// DeleteDevice удаляет устройство
func (c *Client) DeleteDevice(ctx context.Context, deviceID int64) (string, error) {
	query := map[string]string{"DeviceId": strconv.FormatInt(deviceID, 10)}
	return c.send(ctx, "delete device", resty.MethodDelete, "/Devices/DeleteDevice", query, nil)
}

// NoteHeartBeat отмечает активность устройства
func (c *Client) NoteHeartBeat(ctx context.Context, deviceID int64) error {
	query := map[string]string{"DeviceId": strconv.FormatInt(deviceID, 10)}
	if _, err := c.send(ctx, "note heartbeat", resty.MethodPost, "/Devices/NoteHeartBeat", query, nil); err != nil {
		return fmt.Errorf("device %d: %w", deviceID, err)
	}
	return nil
}

// PushSamples отправляет измерения устройства: сигналы для Continuous,
// кривые для Periodic. Тело передаётся как есть.
func (c *Client) PushSamples(ctx context.Context, device Device, payload json.RawMessage) (string, error) {
	if !json.Valid(payload) {
		return "", errors.New("samples: payload is not valid JSON")
	}
	path := "/Periodic/Curves"
	if device.IsContinuous() {
		path = "/Continuous/Signals"
	}
	query := map[string]string{"DeviceId": strconv.FormatInt(device.DeviceID, 10)}
	return c.send(ctx, "push samples", resty.MethodPost, path, query, payload)
}
