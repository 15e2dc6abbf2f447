// Package notifications announces finished runs via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// commands can notify unconditionally. Delivery failures are returned to the
// caller, which treats them as warnings.
package notifications
