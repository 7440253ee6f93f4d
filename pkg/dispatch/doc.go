// Package dispatch generates a one-time password for a user and delivers
// it, either directly through a Notifier or by publishing a
// TRIGGER_NOTIFICATION event for an external service.
//
// The dispatcher depends only on the SecretStore, Notifier and
// EventPublisher interfaces; pkg/ldap, pkg/notify and pkg/event provide
// implementations.
package dispatch
