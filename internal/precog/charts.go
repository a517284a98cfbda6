package precog

import (
	"context"
	"strconv"
	"time"
)

// GetPeriodRange возвращает точки периода непрерывного устройства
func (c *Client) GetPeriodRange(ctx context.Context, device Device, periodFrom, periodTo Marker) ([]ChartPoint, error) {
	path := "/Continuous/PeriodRange"
	if device.IsBidirectional() {
		path = "/BiDirectionalContinuous/PeriodRange"
	}
	query := map[string]string{
		"DeviceId":   strconv.FormatInt(device.DeviceID, 10),
		"PeriodFrom": periodFrom.String(),
		"PeriodTo":   periodTo.String(),
	}
	var points []ChartPoint
	if err := c.getJSON(ctx, "get period range", path, query, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// GetCurvePeriodRange возвращает точки одной кривой периодического устройства
func (c *Client) GetCurvePeriodRange(ctx context.Context, device Device, issueID int64) ([]ChartPoint, error) {
	path := "/Periodic/CurvePeriodRange"
	if device.IsBidirectional() {
		path = "/BiDirectionalPeriodic/CurvePeriodRange"
	}
	id := strconv.FormatInt(issueID, 10)
	query := map[string]string{
		"DeviceId":        strconv.FormatInt(device.DeviceID, 10),
		"CurvePeriodFrom": id,
		"CurvePeriodTo":   id,
	}
	var curves []Curve
	if err := c.getJSON(ctx, "get curve period range", path, query, &curves); err != nil {
		return nil, err
	}
	if len(curves) == 0 {
		return nil, nil
	}
	return curves[0].OutputData, nil
}

// GetMeasuredDateRange возвращает сырые измерения в окне дат
func (c *Client) GetMeasuredDateRange(ctx context.Context, deviceID int64, start, end time.Time) ([]MeasuredPoint, error) {
	query := map[string]string{
		"DeviceId":  strconv.FormatInt(deviceID, 10),
		"StartDate": FormatTime(start),
		"EndDate":   FormatTime(end),
	}
	var points []MeasuredPoint
	if err := c.getJSON(ctx, "get measured date range", "/Continuous/MeasuredDateRange", query, &points); err != nil {
		return nil, err
	}
	return points, nil
}
