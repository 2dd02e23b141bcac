// Package client talks to a wifiprovd daemon over its JSON-RPC WebSocket.
//
// Calls are correlated by UUID request IDs, so several may be in flight on
// one connection. Busy, not-ready and network failures are retried with
// exponential backoff; everything else is returned as a *DeviceError.
//
//	c := client.NewClient("192.168.4.1:80")
//	defer c.Close()
//	if err := c.Provision(ctx, "HomeNet", pass); err != nil {
//	    fmt.Println(client.GetShortErrorMessage(err))
//	}
//	outcome, err := c.WaitOnline(ctx, "HomeNet")
package client
