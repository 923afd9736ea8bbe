// Package mqtt connects the server to an MQTT broker.
//
// This package manages:
//   - Connection with auto-reconnect and Last Will and Testament
//   - Retained routing announcements (Announcer)
//   - Remote transport commands (Remote)
//
// # Architecture
//
// Routing changes are published as retained JSON documents so that any
// subscriber, including ones that connect later, can see where every track
// currently plays:
//
//	musalce/routing/{flavor}/{track}   retained routing state
//	musalce/command/{action}           remote transport commands
//	musalce/system/status              online/offline (LWT)
//
// The Announcer is fed from the OSC handler goroutine, so RoutingChanged
// never blocks: events go into a bounded queue drained by one publisher
// goroutine.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, version)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	announcer := mqtt.NewAnnouncer(client, client.Topics(), 0)
//	announcer.Start(ctx)
//	defer announcer.Stop()
package mqtt
