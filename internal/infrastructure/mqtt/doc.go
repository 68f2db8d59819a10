// Package mqtt connects lumen to an MQTT broker.
//
// lumen uses the broker for two optional things: publishing its state
// (decided brightness, ambient readings, learned overrides) and receiving
// lux readings from a remote sensor. Both are off unless mqtt.enabled is set.
//
// Topics live under a configurable prefix, "lumen" by default:
//
//	lumen/system/status       retained online/offline, doubles as LWT
//	lumen/state/brightness    retained, last decision
//	lumen/state/ambient       latest lux reading
//	lumen/event/override      one message per learned override
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(client.Topics().BrightnessState(), state, true)
package mqtt
