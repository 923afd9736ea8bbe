// Package bitwig implements the Bitwig Studio driver.
//
// Bitwig has no notion of a routable track on the server side. Instead the
// extension reports hardware controllers, each with 16 MIDI channels, and
// assigns names to channels. A named channel defines a Track of that name
// whose output is the channel's sink on the controller's MIDI device.
// Track names are unique; renaming a channel moves the output from the old
// Track (which is unbound, not deleted) to the new one.
//
// One controller may be flagged as the clock source. Its device's input
// port then feeds the transport clock. Clearing the flag clears the clock;
// another controller is never promoted automatically.
package bitwig
