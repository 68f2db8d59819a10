// Package telemetry turns predictor activity into metrics, time series and
// MQTT messages.
//
// A Recorder is installed as the predictor's Observer. Observer callbacks run
// on the control loop, so the Recorder only updates in-memory state, gauges
// and the batched InfluxDB writer there; MQTT publishing, which waits for the
// broker, happens on the Recorder's own goroutine started by Run.
package telemetry
