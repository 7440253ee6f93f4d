// Package event publishes token lifecycle events to a message broker so
// an external service can take over delivery.
//
// Two publishers are provided: NATSPublisher and RedisPublisher. Both
// encode Event as JSON.
package event
