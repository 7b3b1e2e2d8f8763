// Package nmea decodes NMEA-0183 sentences one byte at a time.
//
// A Decoder is fed raw receiver output and keeps the latest committed value of
// each field it understands:
// - RMC: time, fix status, position, ground speed, course, date
// - GGA: time, position, fix quality, satellites, HDOP, altitude
// - any (sentence, term) pair registered through Decoder.Register
//
// Values are staged while a sentence streams in and committed only once its
// checksum matches, so a reader never sees half of one sentence mixed with
// half of another. A Decoder is not safe for concurrent use.
package nmea
