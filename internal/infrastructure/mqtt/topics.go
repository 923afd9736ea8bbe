package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "musalce"

// Topics builds the server's MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "musalce"}
//	topics.Routing("bitwig", "Bass")
//	// Returns: "musalce/routing/bitwig/Bass"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Routing returns the retained routing-state topic of one track.
//
// Example: musalce/routing/live/12
func (t Topics) Routing(flavor, track string) string {
	return fmt.Sprintf("%s/routing/%s/%s", t.prefix(), flavor, Segment(track))
}

// Command returns the topic a remote publishes an action to.
//
// Example: musalce/command/play
func (t Topics) Command(action string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), action)
}

// SystemStatus returns the online/offline status topic.
//
// Example: musalce/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllRouting returns a pattern matching every routing topic.
//
// Pattern: musalce/routing/+/+
func (t Topics) AllRouting() string {
	return fmt.Sprintf("%s/routing/+/+", t.prefix())
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: musalce/command/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", t.prefix())
}

// CommandAction extracts the action from a command topic. ok is false for
// topics outside the command tree.
func (t Topics) CommandAction(topic string) (action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Segment makes s safe to use as a single topic level. Track names come
// from the DAW and may contain separators or wildcards.
func Segment(s string) string {
	if s == "" {
		return "_"
	}
	return segmentReplacer.Replace(s)
}
