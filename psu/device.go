package psu

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-psu/logger"
	"github.com/arloliu/go-psu/scpi"
)

// MeasurementStatus is a snapshot of the instrument's measured and configured
// output state.
type MeasurementStatus struct {
	// Voltage is the measured output voltage in volts.
	Voltage float64
	// Current is the measured output current in amperes.
	Current float64
	// Power is the output power in watts, measured directly on families that
	// support MEAS:POW? and computed as voltage times current otherwise.
	Power float64
	// OutputEnabled reports whether the output stage is on.
	OutputEnabled bool
	// SetVoltage is the configured voltage setpoint in volts.
	SetVoltage float64
	// SetCurrent is the configured current setpoint in amperes.
	SetCurrent float64
}

// DeviceInfo aggregates identity, limits and status. Fields backed by queries
// that some families do not answer are pointers and stay nil when the query
// times out.
type DeviceInfo struct {
	Identity      scpi.DeviceIdentity
	Family        Family
	OutputEnabled bool
	VoltageLimit  *float64
	CurrentLimit  *float64
	RemoteMode    *bool
	Keylock       *bool
	StatusByte    *int
	Errors        []scpi.ErrorEntry
}

// Device is the high-level convenience API over a connection engine. Every
// method is built purely from the engine primitives Send, Query and
// DrainErrors; the Device itself holds no instrument state.
//
// The Device performs no retries. Callers deciding to retry a failed
// measurement re-invoke the method.
type Device struct {
	conn   *Conn
	logger logger.Logger
}

// NewDevice creates a Device over an existing connection engine.
func NewDevice(conn *Conn) *Device {
	return &Device{
		conn:   conn,
		logger: conn.logger,
	}
}

// Conn returns the underlying connection engine.
func (d *Device) Conn() *Conn {
	return d.conn
}

// Identity returns the verified device identity.
func (d *Device) Identity() scpi.DeviceIdentity {
	return d.conn.Identity()
}

// Reset restores the instrument's default settings via *RST.
func (d *Device) Reset() error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemReset))
}

// ClearStatus clears the status registers and the error queue via *CLS.
func (d *Device) ClearStatus() error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemClearStatus))
}

// OperationComplete reports whether all pending operations have finished.
func (d *Device) OperationComplete() (bool, error) {
	reply, err := d.conn.Query(scpi.NewQuery(scpi.MnemOperationComplete))
	if err != nil {
		return false, err
	}

	return scpi.ParseBool(reply)
}

// WaitForOperationComplete instructs the instrument to finish all pending
// operations before executing subsequent commands.
func (d *Device) WaitForOperationComplete() error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemWait))
}

// StatusByte reads the instrument status byte.
func (d *Device) StatusByte() (int, error) {
	reply, err := d.conn.Query(scpi.NewQuery(scpi.MnemStatusByte))
	if err != nil {
		return 0, err
	}

	return scpi.ParseInt(reply)
}

// SetOutput enables or disables the output stage.
func (d *Device) SetOutput(enable bool) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemOutput, enable))
}

// Output reports whether the output stage is enabled.
func (d *Device) Output() (bool, error) {
	reply, err := d.conn.Query(scpi.NewQuery(scpi.MnemOutputQuery))
	if err != nil {
		return false, err
	}

	return scpi.ParseBool(reply)
}

// SetVoltage sets the output voltage setpoint in volts.
func (d *Device) SetVoltage(voltage float64) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemVoltage, voltage))
}

// Voltage reads the voltage setpoint in volts.
func (d *Device) Voltage() (float64, error) {
	return d.queryFloat(scpi.MnemVoltageQuery)
}

// MeasureVoltage measures the actual output voltage in volts.
func (d *Device) MeasureVoltage() (float64, error) {
	return d.queryFloat(scpi.MnemMeasureVoltage)
}

// SetVoltageLimit sets the voltage limit in volts.
func (d *Device) SetVoltageLimit(voltage float64) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemVoltageLimit, voltage))
}

// VoltageLimit reads the voltage limit in volts.
func (d *Device) VoltageLimit() (float64, error) {
	return d.queryFloat(scpi.MnemVoltageLimitQuery)
}

// SetCurrent sets the output current setpoint in amperes.
func (d *Device) SetCurrent(current float64) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemCurrent, current))
}

// Current reads the current setpoint in amperes.
func (d *Device) Current() (float64, error) {
	return d.queryFloat(scpi.MnemCurrentQuery)
}

// MeasureCurrent measures the actual output current in amperes.
func (d *Device) MeasureCurrent() (float64, error) {
	return d.queryFloat(scpi.MnemMeasureCurrent)
}

// SetCurrentLimit sets the current limit in amperes.
func (d *Device) SetCurrentLimit(current float64) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemCurrentLimit, current))
}

// CurrentLimit reads the current limit in amperes.
func (d *Device) CurrentLimit() (float64, error) {
	return d.queryFloat(scpi.MnemCurrentLimitQuery)
}

// MeasurePower returns the output power in watts. Families with a direct
// power query answer MEAS:POW?; for the rest, power is computed as measured
// voltage times measured current, per the device profile.
func (d *Device) MeasurePower() (float64, error) {
	if d.conn.DeviceProfile().HasPowerQuery {
		return d.queryFloat(scpi.MnemMeasurePower)
	}

	voltage, err := d.MeasureVoltage()
	if err != nil {
		return 0, err
	}

	current, err := d.MeasureCurrent()
	if err != nil {
		return 0, err
	}

	return voltage * current, nil
}

// MeasurementStatus takes a full snapshot of the measured and configured
// output state.
func (d *Device) MeasurementStatus() (MeasurementStatus, error) {
	var status MeasurementStatus
	var err error

	if status.Voltage, err = d.MeasureVoltage(); err != nil {
		return status, err
	}
	if status.Current, err = d.MeasureCurrent(); err != nil {
		return status, err
	}
	if status.Power, err = d.MeasurePower(); err != nil {
		return status, err
	}
	if status.OutputEnabled, err = d.Output(); err != nil {
		return status, err
	}
	if status.SetVoltage, err = d.Voltage(); err != nil {
		return status, err
	}
	if status.SetCurrent, err = d.Current(); err != nil {
		return status, err
	}

	return status, nil
}

// SetRemoteMode switches the instrument between remote and local control.
func (d *Device) SetRemoteMode(enable bool) error {
	if enable {
		return d.conn.Send(scpi.NewCommand(scpi.MnemSystemRemote))
	}

	return d.conn.Send(scpi.NewCommand(scpi.MnemSystemLocal))
}

// RemoteMode reports whether the instrument is in remote mode. Some families
// do not answer the query at all; a timeout is reported as local mode.
func (d *Device) RemoteMode() (bool, error) {
	return d.queryOptionalBool(scpi.MnemRemoteQuery)
}

// SetKeylock enables or disables the front-panel input lockout.
func (d *Device) SetKeylock(enable bool) error {
	return d.conn.Send(scpi.NewCommand(scpi.MnemKeylock, enable))
}

// Keylock reports whether the front panel is locked out. Some families do not
// answer the query at all; a timeout is reported as unlocked.
func (d *Device) Keylock() (bool, error) {
	return d.queryOptionalBool(scpi.MnemKeylockQuery)
}

// ConfigureOutput sets the voltage and current setpoints and optionally
// enables the output, in that order.
func (d *Device) ConfigureOutput(voltage float64, current float64, enable bool) error {
	if err := d.SetVoltage(voltage); err != nil {
		return fmt.Errorf("configure output: %w", err)
	}

	if err := d.SetCurrent(current); err != nil {
		return fmt.Errorf("configure output: %w", err)
	}

	if enable {
		if err := d.SetOutput(true); err != nil {
			return fmt.Errorf("configure output: %w", err)
		}
	}

	return nil
}

// SafeShutdown disables the output and zeroes the voltage setpoint. The
// output is disabled first so the load never sees a transient.
func (d *Device) SafeShutdown() error {
	if err := d.SetOutput(false); err != nil {
		return fmt.Errorf("safe shutdown: %w", err)
	}

	if err := d.SetVoltage(0); err != nil {
		return fmt.Errorf("safe shutdown: %w", err)
	}

	return nil
}

// DeviceInfo aggregates identity, limits and status into one snapshot.
// Optional queries that time out on families not supporting them leave their
// field nil instead of failing the whole call; any other error aborts.
func (d *Device) DeviceInfo() (DeviceInfo, error) {
	info := DeviceInfo{
		Identity: d.conn.Identity(),
		Family:   d.conn.DeviceProfile().Family,
	}

	var err error
	if info.OutputEnabled, err = d.Output(); err != nil {
		return info, err
	}

	if v, err := d.VoltageLimit(); err == nil {
		info.VoltageLimit = &v
	} else if !errors.Is(err, ErrTimeout) {
		return info, err
	} else {
		d.logger.Warn("voltage limit query not answered", "error", err)
	}

	if v, err := d.CurrentLimit(); err == nil {
		info.CurrentLimit = &v
	} else if !errors.Is(err, ErrTimeout) {
		return info, err
	} else {
		d.logger.Warn("current limit query not answered", "error", err)
	}

	// RemoteMode and Keylock already map an unanswered query to false.
	if v, err := d.RemoteMode(); err == nil {
		info.RemoteMode = &v
	} else {
		return info, err
	}

	if v, err := d.Keylock(); err == nil {
		info.Keylock = &v
	} else {
		return info, err
	}

	if v, err := d.StatusByte(); err == nil {
		info.StatusByte = &v
	} else if !errors.Is(err, ErrTimeout) {
		return info, err
	} else {
		d.logger.Warn("status byte query not answered", "error", err)
	}

	if info.Errors, err = d.conn.DrainErrors(); err != nil {
		return info, err
	}

	return info, nil
}

func (d *Device) queryFloat(mnemonic string) (float64, error) {
	reply, err := d.conn.Query(scpi.NewQuery(mnemonic))
	if err != nil {
		return 0, err
	}

	return scpi.ParseFloat(reply)
}

// queryOptionalBool issues a boolean query that not every family answers.
// A timeout is treated as false; the engine stays usable afterwards.
func (d *Device) queryOptionalBool(mnemonic string) (bool, error) {
	reply, err := d.conn.Query(scpi.NewQuery(mnemonic))
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			d.logger.Warn("query not answered, assuming off", "command", mnemonic)
			return false, nil
		}

		return false, err
	}

	return scpi.ParseBool(reply)
}
