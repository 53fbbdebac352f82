// Package notifications delivers reel lifecycle events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. One method per milestone keeps messages consistent so workflow code
// never duplicates HTTP glue or copy.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
