// Package bridge relays device beacons to WebSocket subscribers.
//
// Only one process on a host can bind the broadcast ports, so `switcher
// serve` owns them and republishes every discovery.Message as a JSON text
// frame. Other tools (the watch UI on another machine, a home automation
// script) subscribe instead of listening for UDP themselves.
//
// # Endpoints
//
//	GET /ws       WebSocket stream of discovery messages
//	GET /devices  JSON array with the last beacon of every device
//	GET /healthz  bridge status and subscriber count
//
// A new subscriber first receives the last beacon of every device seen so
// far, then live messages. A subscriber that falls more than a buffer
// behind is disconnected rather than allowed to stall the others.
//
// # mDNS
//
// When Config.Announce is set the bridge registers itself as a
// _switcher._tcp service, and Browse finds bridges on the local network.
//
// # Usage Example
//
//	msgs, err := discovery.NewDispatcher().Listen(ctx, discovery.Filter{})
//	if err != nil {
//	    return err
//	}
//	srv := bridge.New(&bridge.Config{Port: bridge.DefaultPort, Announce: true})
//	return srv.Serve(ctx, msgs)
//
// And on the subscriber side:
//
//	msgs, err := bridge.Dial(ctx, bridge.URL("192.168.1.5", bridge.DefaultPort))
//	for msg := range msgs {
//	    fmt.Println(msg)
//	}
//
// # Thread Safety
//
// Serve owns the server; Devices, ClientCount and Shutdown may be called
// from any goroutine. Each subscriber has exactly one writer goroutine.
package bridge
