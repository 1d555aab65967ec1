// Package psu implements the transport-unified SCPI command engine for bench
// power supplies, together with the high-level Device convenience API built on
// top of it.
//
// The engine (Conn) frames commands, serializes all I/O against concurrent
// callers in strict request/response lock-step, verifies the instrument
// identity against the supported-device table, and maps device-reported faults
// into a structured error channel. It supports OWON SPE/SPM/P-series, KIPRIM
// DC and ODP/ODS families over serial or TCP.
//
// Typical usage:
//
//	cfg, _ := psu.NewConnectionConfig(psu.WithTimeout(2 * time.Second))
//	conn := psu.NewConn(cfg)
//	if err := conn.OpenSerial("/dev/ttyUSB0"); err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	dev := psu.NewDevice(conn)
//	if err := dev.ConfigureOutput(12.0, 1.0, true); err != nil {
//		return err
//	}
package psu
