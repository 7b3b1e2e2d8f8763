package gps

import (
	"net"
	"time"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// gpsdWatchCommand asks gpsd to relay the receiver's raw NMEA sentences
// rather than its own JSON reports.
const gpsdWatchCommand = "?WATCH={\"enable\":true,\"nmea\":true}\n"

func gpsdWatch(conn net.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	_, err := conn.Write([]byte(gpsdWatchCommand))
	return err
}
