// Package platform contains the hamqtt.Entity implementations hamqtt ships with: BinarySensor, which polls a boolean
// and publishes changes, and Button, which calls back when Home Assistant presses it. See the Home Assistant docs for
// the platforms themselves: https://www.home-assistant.io/integrations/mqtt.
//
// Entity configs are owned by the caller and read on every discovery contribution, so they must outlive the entity.
// Name and UniqueID are required; constructors and ContributeDiscovery reject configs without them.
package platform
