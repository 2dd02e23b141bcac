// Package wifi implements the provisioning state machine of a device that
// joins an existing wireless network.
//
// The package is split in two layers:
//
//   - Transition is a pure function from (Model, Event) to (Model, []Command).
//     It owns every decision: which radio mode to start in, when to retry,
//     when credentials are handed to the driver, when the durable record is
//     written or erased.
//   - Controller owns one Model, a single event goroutine and the
//     collaborators (radio Driver, durable Records, outcome Notifier). It
//     feeds events through Transition and issues the resulting commands.
//
// # Events
//
// Events fall into three classes that share one inbound queue: user requests
// (Init, ScanRequest, Provision), radio notifications (Started, Connected,
// Disconnected, ScanDone) and address notifications (AddressAcquired). Timer
// events scheduled by the controller itself re-enter through the same queue,
// so no two transitions ever run concurrently.
//
// # Reprovisioning
//
// When credentials change on a device that is already provisioned, the
// durable record is erased first, then the current link is torn down, and the
// new credentials reach the driver only after the disconnected notification
// arrives. A crash anywhere in between leaves the device not provisioned.
//
// # Usage
//
//	ctl := wifi.NewController(driver, record.NewStore(store), notifier, wifi.DefaultConfig())
//	ctl.Start()
//	defer ctl.Close()
//
//	if err := ctl.Init(ctx); err != nil {
//	    return err
//	}
//	if err := ctl.Provision(ctx, wifi.Credentials{SSID: "home", Pass: "secret"}); err != nil {
//	    return err
//	}
//
// The driver reports back through Controller.Notify.
package wifi
