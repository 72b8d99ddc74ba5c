// Package infra contains technical adapters such as the MQTT and Kafka
// sources, the websocket transport and metrics exporters. These packages
// depend only on the interfaces defined in the core packages.
package infra
