package preflight

import (
	"strings"

	"screendescribe/internal/config"
)

// CheckNotifications reports whether ntfy push notifications are configured.
// A missing topic is advisory, never a failure.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown", Advisory: true}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled", Advisory: true}
	}
	var events []string
	if cfg.Notifications.Failures {
		events = append(events, "failures")
	}
	if cfg.Notifications.Recovery {
		events = append(events, "recovery")
	}
	if len(events) == 0 {
		return Result{Name: name, Passed: true, Detail: "Configured, all events muted", Advisory: true}
	}
	return Result{Name: name, Passed: true, Detail: redactTopic(topic) + " (" + strings.Join(events, ", ") + ")", Advisory: true}
}

// redactTopic keeps the host and hides the topic name, which acts as a
// shared secret on public ntfy servers.
func redactTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return "***"
	}
	return topic[:idx+1] + "***"
}
