// Package publish forwards receiver state changes to MQTT and InfluxDB.
//
// Both publishers implement state.Listener and read the store on each
// notification:
//
//	store.AddListener(publish.NewMQTTPublisher(mqttClient, mqttClient.Topics(), store))
//	store.AddListener(publish.NewMetricsWriter(influxClient, store))
package publish
