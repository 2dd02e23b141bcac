package wifi

import (
	"time"

	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

// Command is an effect requested by Transition. Driver commands are issued
// in order; the first one the driver rejects aborts the rest.
type Command interface {
	Name() string
	isCommand()
}

type (
	SetMode struct{ Mode Mode }
	Start   struct{}
	// SetCredentials hands credentials to the driver. They apply on the
	// next Connect.
	SetCredentials struct{ Credentials Credentials }
	Connect        struct{}
	Disconnect     struct{}
	Scan           struct{}
	// CancelScan is best effort; its failure is only logged.
	CancelScan struct{}

	// EraseRecord removes the durable record and commits. It must land
	// before any later command in the same batch is issued.
	EraseRecord struct{}
	// WriteRecord stores and commits the durable record. A failed write is
	// retried later and does not abort the batch.
	WriteRecord struct{ Record record.Record }

	// Report publishes an outcome to the notifier.
	Report struct{ Outcome Outcome }
	// Reject fails the request that produced the event with Err.
	Reject struct{ Err error }
	// Schedule posts Event back into the queue after After.
	Schedule struct {
		Event Event
		After time.Duration
	}
)

func (SetMode) Name() string        { return "set_mode" }
func (Start) Name() string          { return "start" }
func (SetCredentials) Name() string { return "set_credentials" }
func (Connect) Name() string        { return "connect" }
func (Disconnect) Name() string     { return "disconnect" }
func (Scan) Name() string           { return "scan" }
func (CancelScan) Name() string     { return "cancel_scan" }
func (EraseRecord) Name() string    { return "erase_record" }
func (WriteRecord) Name() string    { return "write_record" }
func (Report) Name() string         { return "report" }
func (Reject) Name() string         { return "reject" }
func (Schedule) Name() string       { return "schedule" }

func (SetMode) isCommand()        {}
func (Start) isCommand()          {}
func (SetCredentials) isCommand() {}
func (Connect) isCommand()        {}
func (Disconnect) isCommand()     {}
func (Scan) isCommand()           {}
func (CancelScan) isCommand()     {}
func (EraseRecord) isCommand()    {}
func (WriteRecord) isCommand()    {}
func (Report) isCommand()         {}
func (Reject) isCommand()         {}
func (Schedule) isCommand()       {}
