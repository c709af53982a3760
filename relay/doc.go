// Package relay mirrors cart events onto a Kafka topic and replays them
// into cart state on the consumer side. The relay is optional plumbing:
// webhook ingestion stays correct when it is disabled or down.
package relay
