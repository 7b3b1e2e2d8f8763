// Package gps reads NMEA from a GNSS receiver and publishes decoded fixes.
//
// Bytes come from one of three sources:
// - serial: a USB/UART receiver, /dev/ttyACM* or /dev/ttyUSB* when not configured
// - gpsd: a gpsd daemon asked to relay raw NMEA
// - tcp: a raw NMEA byte stream such as ser2net
//
// One goroutine owns the nmea.Decoder. After every sentence that passes its
// checksum the service rebuilds a Snapshot, which readers load lock-free.
package gps
