// Package notify fans provisioning outcomes out to observers.
//
// Every sink implements wifi.Notifier. The controller calls Notify from its
// event goroutine, so sinks hand work off instead of blocking.
package notify
