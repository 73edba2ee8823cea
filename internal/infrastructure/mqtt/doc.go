// Package mqtt provides MQTT publishing for SSC Monitor.
//
// The monitor pushes each receiver's snapshot as a retained message so
// dashboards and other consumers can follow receiver state without
// polling the HTTP API.
//
// # Topics
//
//	{prefix}/state/{receiver}   retained receiver snapshot (JSON)
//	{prefix}/system/status      retained online/offline status, also the LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(client.Topics().State("R1"), payload)
package mqtt
