// Package discovery advertises and finds provisioning daemons over mDNS.
//
// A daemon runs an Announcer, which registers the "_wifiprov._tcp" service
// once the station has an address and withdraws it when the link drops. The
// TXT record carries the joined SSID and the daemon version:
//
//	ssid=HomeNet
//	version=v0.3.0
//
// The CLI uses a Scanner to browse for those advertisements:
//
//	devices, err := discovery.NewScanner().Scan(ctx)
//	for _, d := range devices {
//	    fmt.Println(d.Instance, d.Addr(), d.SSID())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
