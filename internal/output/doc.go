// Package output provides the indirection cell that musical code holds in
// place of a hardware sink.
//
// A Cell is created once per routing entity (a DAW track) and never replaced.
// The registry rebinds it whenever the entity's routing changes; holders keep
// calling NoteOn/NoteOff/... on the same Cell and the calls land on whatever
// sink is bound at that moment, or nowhere when the cell is unbound.
//
// # Thread Safety
//
// Bind, Unbind and Rebind swap an atomic pointer. Each forwarded call loads
// the pointer once, so a concurrent rebind is observed either wholly before
// or wholly after the call.
package output
