package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pv/precog-panel/internal/config"
	"github.com/pv/precog-panel/internal/export"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/review"
	"github.com/pv/precog-panel/internal/selection"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show the user's display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			user, err := client.GetUserDetails(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.DisplayName)
			return nil
		},
	}
}

func newDevicesCmd() *cobra.Command {
	var filter selection.DeviceFilter
	c := &cobra.Command{
		Use:   "devices",
		Short: "List devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			devices, err := client.GetDevices(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), filter.Apply(devices), devicesTable)
		},
	}
	c.Flags().StringVar(&filter.Name, "name", "", "Case-insensitive name filter")
	c.Flags().BoolVar(&filter.UnconfirmedOnly, "unconfirmed", false, "Only devices with unconfirmed issues")
	return c
}

type windowFlags struct {
	from, to string
}

func (w *windowFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&w.from, "from", "", "Window start (2006-01-02T15:04:05), default 500 days ago")
	c.Flags().StringVar(&w.to, "to", "", "Window end, default 365 days ahead")
}

func (w *windowFlags) resolve() (from, to time.Time, err error) {
	var wc *config.WindowConfig
	from, to = wc.Range(time.Now(), precog.Location)
	if w.from != "" {
		if from, err = precog.ParseTime(w.from); err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if w.to != "" {
		if to, err = precog.ParseTime(w.to); err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !from.Before(to) {
		return from, to, errors.New("--from must be before --to")
	}
	return from, to, nil
}

func newIssuesCmd() *cobra.Command {
	var (
		window windowFlags
		filter selection.IssueFilter
	)
	c := &cobra.Command{
		Use:   "issues <device-id>",
		Short: "List issues of a device in the date window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			from, to, err := window.resolve()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			issues, err := client.GetIssuesByMeasuredDateRange(ctx, id, from, to)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), filter.Apply(issues), issuesTable)
		},
	}
	window.register(c)
	c.Flags().BoolVar(&filter.NotConfirmed, "not-confirmed", false, "Unconfirmed anomalies")
	c.Flags().BoolVar(&filter.Anomaly, "anomaly", false, "Confirmed anomalies")
	c.Flags().BoolVar(&filter.Others, "others", false, "Confirmed normal issues")
	return c
}

// noTarget Target для review без локального состояния панели
type noTarget struct{}

func (noTarget) PatchIssue(int64, func(*precog.Issue)) bool { return false }
func (noTarget) ClearIssue()                                {}
func (noTarget) Refresh(context.Context)                    {}

// lookup находит устройство и issue по id в текущем окне
func lookup(ctx context.Context, client *precog.Client, window windowFlags, deviceID, issueID int64) (precog.Device, precog.Issue, error) {
	devices, err := client.GetDevices(ctx)
	if err != nil {
		return precog.Device{}, precog.Issue{}, err
	}
	var device precog.Device
	found := false
	for _, d := range devices {
		if d.DeviceID == deviceID {
			device, found = d, true
			break
		}
	}
	if !found {
		return precog.Device{}, precog.Issue{}, fmt.Errorf("device %d: %w", deviceID, selection.ErrUnknownDevice)
	}

	from, to, err := window.resolve()
	if err != nil {
		return device, precog.Issue{}, err
	}
	issues, err := client.GetIssuesByMeasuredDateRange(ctx, deviceID, from, to)
	if err != nil {
		return device, precog.Issue{}, err
	}
	for _, is := range issues {
		if is.IssueID == issueID {
			return device, is, nil
		}
	}
	return device, precog.Issue{}, fmt.Errorf("issue %d: %w", issueID, selection.ErrUnknownIssue)
}

func newReviewCmd() *cobra.Command {
	var (
		window   windowFlags
		decision string
		message  string
		rangeFlg windowFlags
	)
	c := &cobra.Command{
		Use:   "review <device-id> <issue-id>",
		Short: "Record a Yes (normal) or No (anomaly) decision for an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, issueID, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			device, issue, err := lookup(ctx, client, window, deviceID, issueID)
			if err != nil {
				return err
			}

			d := review.Open(device, issue)
			if err := d.Decide(review.Decision(decision)); err != nil {
				return err
			}
			d.SetMessage(message)
			if rangeFlg.from != "" || rangeFlg.to != "" {
				if err := d.SetRange(rangeFlg.from, rangeFlg.to); err != nil {
					return err
				}
			}

			result, err := review.New(client, noTarget{}).Submit(ctx, d)
			if err != nil {
				return fmt.Errorf("%s", result.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	window.register(c)
	c.Flags().StringVarP(&decision, "decision", "d", "", "Yes (normal) or No (anomaly)")
	c.Flags().StringVarP(&message, "message", "m", "", "Comment")
	c.Flags().StringVar(&rangeFlg.from, "measured-from", "", "New measured range start (periodic devices)")
	c.Flags().StringVar(&rangeFlg.to, "measured-to", "", "New measured range end (periodic devices)")
	c.MarkFlagRequired("decision")
	return c
}

func newDeleteIssueCmd() *cobra.Command {
	var (
		window windowFlags
		yes    bool
	)
	c := &cobra.Command{
		Use:   "delete-issue <device-id> <issue-id>",
		Short: "Delete a confirmed issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, issueID, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			device, issue, err := lookup(ctx, client, window, deviceID, issueID)
			if err != nil {
				return err
			}

			result, err := review.New(client, noTarget{}).Delete(ctx, device, issue, yes)
			if errors.Is(err, review.ErrConfirmationRequired) {
				return fmt.Errorf("%s (pass --yes)", review.ConfirmPrompt(device, issue))
			}
			if err != nil {
				if result.Message != "" {
					return fmt.Errorf("%s", result.Message)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	window.register(c)
	c.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return c
}

func newExportCmd() *cobra.Command {
	var (
		window windowFlags
		out    string
	)
	c := &cobra.Command{
		Use:   "export <device-id>",
		Short: "Export issues of a device to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			from, to, err := window.resolve()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}

			devices, err := client.GetDevices(ctx)
			if err != nil {
				return err
			}
			device := precog.Device{DeviceID: id}
			for _, d := range devices {
				if d.DeviceID == id {
					device = d
				}
			}
			issues, err := client.GetIssuesByMeasuredDateRange(ctx, id, from, to)
			if err != nil {
				return err
			}
			data, err := export.Issues(device, issues, precog.Location)
			if err != nil {
				return err
			}

			if out == "" {
				out = export.FileName(device, time.Now())
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d issues to %s\n", len(issues), out)
			return nil
		},
	}
	window.register(c)
	c.Flags().StringVarP(&out, "out", "o", "", "Output file (default issues-<id>-<time>.xlsx)")
	return c
}

func newHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <device-id>",
		Short: "Note a device heartbeat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			if err := client.NoteHeartBeat(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Heartbeat noted for device %d\n", id)
			return nil
		},
	}
}

func newPushSamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "push-samples <device-id> <file.json>",
		Short:  "Send sample measurements for a device and note its heartbeat",
		Long:   "Posts the JSON file to Continuous/Signals or Periodic/Curves depending on the device application, then notes a heartbeat.",
		Args:   cobra.ExactArgs(2),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			payload, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read samples: %w", err)
			}
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			devices, err := client.GetDevices(ctx)
			if err != nil {
				return err
			}
			var device *precog.Device
			for i := range devices {
				if devices[i].DeviceID == id {
					device = &devices[i]
					break
				}
			}
			if device == nil {
				return fmt.Errorf("device %d: %w", id, selection.ErrUnknownDevice)
			}
			text, err := client.PushSamples(ctx, *device, payload)
			if err != nil {
				return err
			}
			if err := client.NoteHeartBeat(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newResetTestDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "reset-test-data",
		Short:  "Reset the server's test data set",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			client, err := connect(ctx, cmd)
			if err != nil {
				return err
			}
			text, err := client.ResetTestData(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) (int64, int64, error) {
	a, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
