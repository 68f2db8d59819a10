// Package influxdb writes lumen's brightness history to InfluxDB.
//
// Every decision, learned override, ambient reading and luma sample can be
// recorded as a point, which makes it easy to chart how the learned curve
// evolves over days. Writes are batched and never block the control loop;
// asynchronous failures are delivered to the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB, map[string]string{"output": "eDP-1"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteDecision("dim/2", 40, true)
package influxdb
