// Package actuator drives a panel's regions.
//
// Each region is one dimmable output. The PWM driver maps an 8-bit level to
// a periph.io duty cycle on the region's GPIO pin; the log driver records
// level changes and is used on hosts without GPIO. Both drivers zero every
// output when opened and again when closed, so a panel starts dark and
// leaves its regions dark on shutdown.
package actuator
