package main

import "gpsfeed/internal/nmea"

const (
	rmcPayload = "GPRMC,045103.000,A,3014.1984,N,09749.2872,W,0.67,161.46,030913,,,A"
	ggaPayload = "GPGGA,045104.321,3014.1985,N,09749.2873,W,1,09,1.2,211.6,M,-22.5,M,,0000"
	gsvPayload = "GPGSV,1,1,01,07,40,050,35"
)

// line frames payload without its terminator, as stored in a record log.
func line(payload string) string {
	s := nmea.Sentence(payload)
	return s[:len(s)-2]
}
