package client

import (
	"context"
	"errors"
	"time"

	"github.com/wzhhnet/esp32-mg-server/internal/server"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

// Scan starts a scan if the device is idle and returns what it knows so far.
func (c *Client) Scan(ctx context.Context) (server.ScanResult, error) {
	var res server.ScanResult
	err := c.Call(ctx, "wifi.scan", nil, &res)
	return res, err
}

// ScanWait starts a scan and polls until the device is idle again, then
// returns the completed results.
func (c *Client) ScanWait(ctx context.Context, poll time.Duration) ([]wifi.Network, error) {
	if poll <= 0 {
		poll = DefaultScanPoll
	}
	res, err := c.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Scanning {
		return res.Networks, nil
	}
	for {
		select {
		case <-time.After(poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		st, err := c.Status(ctx)
		if err != nil {
			return nil, err
		}
		if !st.Busy {
			return c.ScanResults(ctx)
		}
	}
}

// ScanResults returns the networks from the last completed scan.
func (c *Client) ScanResults(ctx context.Context) ([]wifi.Network, error) {
	var networks []wifi.Network
	err := c.Call(ctx, "wifi.scan_results", nil, &networks)
	return networks, err
}

// Provision hands new credentials to the device. It returns once the
// device has accepted them; the outcome arrives as an event.
func (c *Client) Provision(ctx context.Context, ssid, pass string) error {
	var res server.Cause
	if err := c.Call(ctx, "wifi.provision", server.ProvisionParams{SSID: ssid, Pass: pass}, &res); err != nil {
		return err
	}
	if res.Cause != server.CauseSuccess {
		return NewProtocolError("unexpected provision reply: "+res.Cause, nil)
	}
	return nil
}

// Status returns the provisioned identity and whether the device is busy.
func (c *Client) Status(ctx context.Context) (server.StatusResult, error) {
	var st server.StatusResult
	err := c.Call(ctx, "wifi.status", nil, &st)
	return st, err
}

// SysInfo returns the daemon build information.
func (c *Client) SysInfo(ctx context.Context) (server.SysInfo, error) {
	var info server.SysInfo
	err := c.Call(ctx, "sys.info", nil, &info)
	return info, err
}

// Methods lists the RPC methods the daemon serves.
func (c *Client) Methods(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Call(ctx, "rpc.list", nil, &names)
	return names, err
}

// ErrProvisionFailed wraps failed and timeout outcomes from WaitOnline.
var ErrProvisionFailed = errors.New("provisioning failed")

// WaitOnline waits for the device to come online on ssid. A failed or
// timeout outcome for ssid ends the wait with an error wrapping
// ErrProvisionFailed and the outcome's own error. Outcomes for other
// networks are ignored.
func (c *Client) WaitOnline(ctx context.Context, ssid string) (wifi.Outcome, error) {
	for {
		select {
		case o := <-c.events:
			if o.SSID != ssid {
				continue
			}
			switch o.Kind {
			case wifi.OutcomeOnline:
				return o, nil
			case wifi.OutcomeFailed, wifi.OutcomeTimeout:
				return o, errors.Join(ErrProvisionFailed, o.Err())
			}
		case <-ctx.Done():
			return wifi.Outcome{}, ctx.Err()
		}
	}
}
