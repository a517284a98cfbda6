package precog

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Сообщения-заглушки, которые API ожидает вместо пустого текста
const (
	MessageNoChange         = "No_Change"
	MessageEnterDescription = "Enter_Issue_Description"
)

// IssueUpdate параметры подтверждения/отклонения issue
type IssueUpdate struct {
	DeviceID  int64
	IssueID   int64
	IsAnomaly bool
	Message   string
	// Только для периодических устройств, опционально
	MeasuredAtFrom string
	MeasuredAtTo   string
}

func (u IssueUpdate) query() map[string]string {
	q := map[string]string{
		"DeviceId":  strconv.FormatInt(u.DeviceID, 10),
		"IssueId":   strconv.FormatInt(u.IssueID, 10),
		"IsAnomaly": strconv.FormatBool(u.IsAnomaly),
	}
	if u.MeasuredAtFrom != "" {
		q["MeasuredAtFrom"] = u.MeasuredAtFrom
	}
	if u.MeasuredAtTo != "" {
		q["MeasuredAtTo"] = u.MeasuredAtTo
	}
	return q
}

// GetIssuesByMeasuredDateRange возвращает issues устройства в окне дат
func (c *Client) GetIssuesByMeasuredDateRange(ctx context.Context, deviceID int64, start, end time.Time) ([]Issue, error) {
	query := map[string]string{
		"DeviceId":  strconv.FormatInt(deviceID, 10),
		"StartDate": FormatTime(start),
		"EndDate":   FormatTime(end),
	}
	var issues []Issue
	if err := c.getJSON(ctx, "get issues", "/Issues/GetIssuesByMeasuredDateRange", query, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// UpdateContinuousIssue подтверждает issue непрерывного устройства
func (c *Client) UpdateContinuousIssue(ctx context.Context, u IssueUpdate) (string, error) {
	u.MeasuredAtFrom, u.MeasuredAtTo = "", ""
	return c.send(ctx, "update continuous issue", resty.MethodPut, "/Issues/UpdateContiniousIssue", u.query(), u.Message)
}

// UpdatePeriodicIssue подтверждает issue периодического устройства
func (c *Client) UpdatePeriodicIssue(ctx context.Context, u IssueUpdate) (string, error) {
	return c.send(ctx, "update periodic issue", resty.MethodPut, "/Issues/UpdatePeriodicIssue", u.query(), u.Message)
}

// CreatePeriodicIssue превращает период кривой в issue
func (c *Client) CreatePeriodicIssue(ctx context.Context, deviceID, curvePeriod int64, isAnomaly bool, message string) (string, error) {
	query := map[string]string{
		"DeviceId":    strconv.FormatInt(deviceID, 10),
		"CurvePeriod": strconv.FormatInt(curvePeriod, 10),
		"IsAnomaly":   strconv.FormatBool(isAnomaly),
	}
	return c.send(ctx, "create periodic issue", resty.MethodPost, "/Issues/CreatePeriodicIssue", query, message)
}

// DeleteIssue удаляет подтверждённое issue
func (c *Client) DeleteIssue(ctx context.Context, app Application, deviceID, issueID int64) (string, error) {
	path := "/Issues/DeletePeriodicIssue"
	if app == ApplicationContinuous {
		path = "/Issues/DeleteContiniousIssue"
	}
	query := map[string]string{
		"DeviceId": strconv.FormatInt(deviceID, 10),
		"IssueId":  strconv.FormatInt(issueID, 10),
	}
	return c.send(ctx, "delete issue", resty.MethodDelete, path, query, nil)
}
