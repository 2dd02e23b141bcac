package wifi

import (
	"github.com/wzhhnet/esp32-mg-server/internal/record"
)

// Class selects the handler group an event is dispatched to.
type Class int

const (
	ClassUser Class = iota
	ClassRadio
	ClassAddress
)

func (c Class) String() string {
	switch c {
	case ClassUser:
		return "user"
	case ClassRadio:
		return "radio"
	case ClassAddress:
		return "address"
	default:
		return "unknown"
	}
}

// Event is the closed set of inputs to Transition.
type Event interface {
	Class() Class
	Name() string
	isEvent()
}

// Init boots the radio according to the durable record read at startup.
type Init struct {
	Record record.Record
}

// ScanRequest asks for a network scan.
type ScanRequest struct{}

// Provision supplies new credentials.
type Provision struct {
	Credentials Credentials
}

// Started reports that the radio finished starting.
type Started struct{}

// Connected reports association with the target network.
type Connected struct{}

// Disconnected reports loss of association, or a failed attempt.
type Disconnected struct {
	Reason string
}

// ScanDone delivers scan results.
type ScanDone struct {
	Networks []Network
}

// AddressAcquired reports that the station interface obtained an address.
type AddressAcquired struct {
	IP string
}

// Timeout fires when a busy state outlives the busy timeout. Epoch ties it
// to the state entry that armed it.
type Timeout struct {
	Epoch uint64
}

// RetryLater restarts the connect cycle after retries were exhausted.
type RetryLater struct {
	Epoch uint64
}

// FlushRecord re-attempts a durable write that failed earlier.
type FlushRecord struct{}

func (Init) Class() Class            { return ClassUser }
func (ScanRequest) Class() Class     { return ClassUser }
func (Provision) Class() Class       { return ClassUser }
func (Started) Class() Class         { return ClassRadio }
func (Connected) Class() Class       { return ClassRadio }
func (Disconnected) Class() Class    { return ClassRadio }
func (ScanDone) Class() Class        { return ClassRadio }
func (Timeout) Class() Class         { return ClassRadio }
func (RetryLater) Class() Class      { return ClassRadio }
func (AddressAcquired) Class() Class { return ClassAddress }
func (FlushRecord) Class() Class     { return ClassAddress }

func (Init) Name() string            { return "init" }
func (ScanRequest) Name() string     { return "scan_request" }
func (Provision) Name() string       { return "provision" }
func (Started) Name() string         { return "started" }
func (Connected) Name() string       { return "connected" }
func (Disconnected) Name() string    { return "disconnected" }
func (ScanDone) Name() string        { return "scan_done" }
func (Timeout) Name() string         { return "timeout" }
func (RetryLater) Name() string      { return "retry_later" }
func (AddressAcquired) Name() string { return "address_acquired" }
func (FlushRecord) Name() string     { return "flush_record" }

func (Init) isEvent()            {}
func (ScanRequest) isEvent()     {}
func (Provision) isEvent()       {}
func (Started) isEvent()         {}
func (Connected) isEvent()       {}
func (Disconnected) isEvent()    {}
func (ScanDone) isEvent()        {}
func (Timeout) isEvent()         {}
func (RetryLater) isEvent()      {}
func (AddressAcquired) isEvent() {}
func (FlushRecord) isEvent()     {}
