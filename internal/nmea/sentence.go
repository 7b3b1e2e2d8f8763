package nmea

import (
	"fmt"
	"strings"
)

// Checksum is the XOR of every byte of payload, the part of a sentence
// between '$' and '*'.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Sentence frames payload as a complete "$payload*HH\r\n" sentence.
func Sentence(payload string) string {
	return fmt.Sprintf("$%s*%02X\r\n", payload, Checksum(payload))
}

// SentenceName returns the identifier of a raw line such as "GPRMC" for
// "$GPRMC,...". ok is false when line does not start with '$'.
func SentenceName(line string) (name string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return "", false
	}
	name = line[1:]
	if i := strings.IndexAny(name, ",*"); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}
