// Package osc is the UDP transport between the server and the DAW extension.
//
// Wire encoding and decoding is done by github.com/hypebeast/go-osc. This
// package adds what the DAW bridge needs on top:
//
//   - Server reads packets on one goroutine and hands them, in arrival
//     order, to ONE handler goroutine through a bounded queue. Handlers can
//     therefore mutate registries without further locking against each other.
//     Other goroutines join that order with Server.Do.
//   - Client retries transient send failures (connection refused, timeouts)
//     a bounded number of times, immediately, then gives up with ErrSendFailed.
//   - Argument helpers coerce the loosely typed OSC arguments (int32, float32,
//     bool, nil) the DAW scripts emit.
//
// # Usage
//
//	srv := osc.NewServer(osc.ServerOptions{Addr: ":11011", QueueSize: 256})
//	srv.Handle("/hello", func(msg osc.Message) { ... })
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Stop()
//
//	client := osc.NewClient("localhost", 10001, 3)
//	err := client.Send("/musalce4live/tracks")
package osc
