// Package influxdb provides InfluxDB connectivity for SSC Monitor.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health checks. The publish
// package turns receiver snapshots into points; this package only knows
// about measurements, tags and fields.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("receiver_channel",
//	    map[string]string{"receiver": "R1", "channel": "1"},
//	    map[string]any{"muted": false})
package influxdb
