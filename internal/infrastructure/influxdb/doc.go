// Package influxdb writes pin level history to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, health checks and non-blocking batched writes. Each level
// change becomes one point in the pin_level measurement, tagged by device
// and source.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, logger)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history off
//	}
//	defer client.Close()
//
//	client.WriteLevel("led", "toggler", false, true, time.Now())
//
// # Error Handling
//
// Writes never return errors. Transient batch failures are retried up to
// three times; batches the server rejects are dropped, logged and counted
// in Stats. Connection and health check errors are returned directly.
package influxdb
