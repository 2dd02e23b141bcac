// Package server exposes a wifi provisioning controller over HTTP.
//
// One listener carries two surfaces:
//
//   - /websocket speaks JSON-RPC 2.0. Requests are answered on the same
//     connection; provisioning outcomes are pushed to every client as
//     wifi.event notifications, and a keepalive frame is broadcast
//     periodically:
//
//     {"method":"keepalive","params":{}}
//
//   - /rest/... is a small JSON API for clients that cannot hold a socket.
//     Replies that carry no data use the {"cause": "..."} vocabulary:
//     "success", "invalid parameters", "invalid rest api", "busy" and
//     "esp32 internal error".
//
// # Methods
//
//	wifi.scan          start a scan (if idle) and return known networks
//	wifi.scan_results  networks from the last completed scan
//	wifi.provision     {"ssid": "...", "pass": "..."}
//	wifi.status        provisioned SSID and address, and whether busy
//	sys.info           build information
//	rpc.list           registered method names
//
// # Routes
//
//	GET|POST /rest/wifi/scan
//	GET      /rest/wifi/results
//	POST     /rest/wifi/provision
//	GET      /rest/wifi/status
//	GET      /rest/sys/info
//
// TLS is enabled when both a certificate and a key are configured.
package server
