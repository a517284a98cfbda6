package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/pv/precog-panel/internal/precog"
)

type fakePrecog struct {
	mu     sync.Mutex
	writes []string
	bodies []string
}

func newFakePrecog(t *testing.T) *httptest.Server {
	srv, _ := newRecordingPrecog(t)
	return srv
}

func newRecordingPrecog(t *testing.T) (*httptest.Server, *fakePrecog) {
	t.Helper()
	f := &fakePrecog{}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	t.Setenv("PRECOG_PASSWORD", "secret")
	return srv, f
}

func (f *fakePrecog) recorded() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...), append([]string(nil), f.bodies...)
}

func (f *fakePrecog) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/Authentication/Request_HMAC_Key" {
		var creds struct {
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"_HMAC_Key":"cli-key"}`)
		return
	}
	if r.Header.Get(precog.HeaderHMACKey) != "cli-key" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.Method + " " + r.URL.Path {
	case "GET /api/User/GetUserDetails":
		fmt.Fprint(w, `{"displayName":"Night Shift"}`)
	case "GET /api/Devices/GetDeviceDetails":
		fmt.Fprint(w, `[
			{"deviceId":1,"name":"Pump","application":"Continuous","direction":"HigherIsBetter","lookback":10,"scale":"Days","minIssueScore":1.5,"hasUnconfirmedIssue":true,"issuesUpdatedAt":"m1"},
			{"deviceId":2,"name":"Boiler","application":"Periodic","direction":"BiDirectional","lookback":5,"scale":"Hours","minIssueScore":2,"hasUnconfirmedIssue":false,"issuesUpdatedAt":null}]`)
	case "GET /api/Issues/GetIssuesByMeasuredDateRange":
		fmt.Fprint(w, `[
			{"issueId":10,"confirmed":false,"isAnomaly":true,"message":"Pressure high.","measuredAtFrom":"2024-01-01T10:00:00","measuredAtTo":"2024-01-01T11:00:00","issueScore":3,"periodFrom":"a","periodTo":"b"},
			{"issueId":11,"confirmed":true,"isAnomaly":false,"message":null,"issueScore":1,"periodFrom":"c","periodTo":"d"}]`)
	default:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()
		fmt.Fprint(w, "Saved")
	}
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true
	return executeCommand(root, append([]string{"--api-url", srv.URL, "--user", "op"}, args...)...)
}

func TestLogin(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "login")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Logged in as Night Shift") {
		t.Errorf("unexpected output %q", out)
	}

	t.Setenv("PRECOG_PASSWORD", "wrong")
	if _, err := run(t, srv, "login"); err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Errorf("expected authentication error, got %v", err)
	}
}

func TestLoginRequiresUser(t *testing.T) {
	srv := newFakePrecog(t)
	root := newRootCmd()
	_, err := executeCommand(root, "--api-url", srv.URL, "--user", "", "login")
	if err == nil || !strings.Contains(err.Error(), "user name required") {
		t.Errorf("expected missing user error, got %v", err)
	}
}

func TestDevicesJSON(t *testing.T) {
	srv := newFakePrecog(t)
	tests := []struct {
		name string
		args []string
		want []int64
	}{
		{"all", nil, []int64{1, 2}},
		{"by name", []string{"--name", "boil"}, []int64{2}},
		{"unconfirmed", []string{"--unconfirmed"}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, srv, append([]string{"devices", "--format", "json"}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			var devices []precog.Device
			if err := json.Unmarshal([]byte(out), &devices); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			var got []int64
			for _, d := range devices {
				got = append(got, d.DeviceID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("devices = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDevicesConsole(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "devices")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Pump", "Boiler", "10 Days", "2 devices"} {
		if !strings.Contains(out, want) {
			t.Errorf("table misses %q:\n%s", want, out)
		}
	}
}

func TestIssuesConsole(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "issues", "1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Pressure high.", "2 issues"} {
		if !strings.Contains(out, want) {
			t.Errorf("table misses %q:\n%s", want, out)
		}
	}
}

func TestIssuesFilters(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "issues", "1", "--others", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var issues []precog.Issue
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 || issues[0].IssueID != 11 {
		t.Errorf("unexpected issues %+v", issues)
	}

	if _, err := run(t, srv, "issues", "1", "--from", "2024-02-01T00:00:00", "--to", "2024-01-01T00:00:00"); err == nil {
		t.Error("reversed window should fail")
	}
	if _, err := run(t, srv, "issues", "x"); err == nil {
		t.Error("invalid id should fail")
	}
}

func TestReview(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "review", "1", "10", "--decision", "No", "-m", "Valve")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if strings.TrimSpace(out) != "Saved" {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := run(t, srv, "review", "1", "10", "--decision", "Maybe"); err == nil {
		t.Error("invalid decision should fail")
	}
	if _, err := run(t, srv, "review", "1", "99", "--decision", "Yes"); err == nil || !strings.Contains(err.Error(), "issue 99") {
		t.Errorf("expected unknown issue error, got %v", err)
	}
	if _, err := run(t, srv, "review", "1", "10", "--decision", "Yes", "--measured-from", "2024-01-01T00:00:00"); err == nil {
		t.Error("range on continuous device should fail")
	}
}

func TestDeleteIssue(t *testing.T) {
	srv := newFakePrecog(t)
	_, err := run(t, srv, "delete-issue", "1", "11")
	if err == nil || !strings.Contains(err.Error(), "Are you sure you want to remove Issue #11?") {
		t.Fatalf("expected confirmation prompt, got %v", err)
	}
	if _, err := run(t, srv, "delete-issue", "1", "10", "--yes"); err == nil {
		t.Error("unconfirmed issue cannot be deleted")
	}
	out, err := run(t, srv, "delete-issue", "1", "11", "--yes")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Saved" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExport(t *testing.T) {
	srv := newFakePrecog(t)
	path := filepath.Join(t.TempDir(), "pump.xlsx")
	out, err := run(t, srv, "export", "1", "-o", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote 2 issues") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Issues")
	if len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

func TestHeartbeat(t *testing.T) {
	srv := newFakePrecog(t)
	out, err := run(t, srv, "heartbeat", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "device 2") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPushSamples(t *testing.T) {
	srv, fake := newRecordingPrecog(t)
	file := filepath.Join(t.TempDir(), "curve.json")
	if err := os.WriteFile(file, []byte(`[{"values": [1, 2, 3]}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, srv, "push-samples", "2", file)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Saved" {
		t.Errorf("unexpected output %q", out)
	}

	writes, bodies := fake.recorded()
	want := []string{
		"POST /api/Periodic/Curves?DeviceId=2",
		"POST /api/Devices/NoteHeartBeat?DeviceId=2",
	}
	if strings.Join(writes, "|") != strings.Join(want, "|") {
		t.Errorf("writes = %v, want %v", writes, want)
	}
	if len(bodies) == 0 || bodies[0] != `[{"values":[1,2,3]}]` {
		t.Errorf("unexpected samples body %v", bodies)
	}

	if _, err := run(t, srv, "push-samples", "9", file); err == nil || !strings.Contains(err.Error(), "device 9") {
		t.Errorf("unknown device should fail, got %v", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	srv := newFakePrecog(t)
	if _, err := run(t, srv, "devices", "--format", "yaml"); err == nil {
		t.Error("unknown format should fail")
	}
}
