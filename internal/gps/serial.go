package gps

import (
	"fmt"
	"io"

	"github.com/jacobsa/go-serial/serial"
)

func openSerialPort(driver, device string, baud int) (io.ReadCloser, error) {
	switch driver {
	case "", "termios":
		f, err := openTermios(device, baud)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "portable":
		return openPortable(device, baud)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}

func openPortable(device string, baud int) (io.ReadCloser, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("unsupported baud %d", baud)
	}
	return serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
}
