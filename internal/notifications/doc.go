// Package notifications delivers change and error alerts via pluggable sinks.
//
// NewService fans out to every sink the configuration enables: ntfy (topic
// URL), Discord (bot token plus channel), and PagerDuty (Events API v2
// routing key). With no sink configured it returns a no-op Service.
// Enumerated event types keep message formatting in one place so the poll
// loop only hands over the ChangeEvent or the failed asset.
//
// Delivery is best effort: the poll loop calls the Service from a detached
// goroutine under the notification timeout and only logs failures.
package notifications
