package scpi

// Mnemonics of the SCPI command surface the supported power supplies expose.
// Queries carry the trailing '?'.
const (
	// IEEE 488.2 common commands.
	MnemIdentify          = "*IDN?"
	MnemReset             = "*RST"
	MnemClearStatus       = "*CLS"
	MnemOperationComplete = "*OPC?"
	MnemWait              = "*WAI"
	MnemStatusByte        = "*STB?"

	// Source settings.
	MnemVoltage           = "VOLT"
	MnemVoltageQuery      = "VOLT?"
	MnemVoltageLimit      = "VOLT:LIM"
	MnemVoltageLimitQuery = "VOLT:LIM?"
	MnemCurrent           = "CURR"
	MnemCurrentQuery      = "CURR?"
	MnemCurrentLimit      = "CURR:LIM"
	MnemCurrentLimitQuery = "CURR:LIM?"

	// Measurements.
	MnemMeasureVoltage = "MEAS:VOLT?"
	MnemMeasureCurrent = "MEAS:CURR?"
	MnemMeasurePower   = "MEAS:POW?"

	// Output control.
	MnemOutput      = "OUTP"
	MnemOutputQuery = "OUTP?"

	// System.
	MnemSystemError  = "SYST:ERR?"
	MnemSystemRemote = "SYST:REM"
	MnemSystemLocal  = "SYST:LOC"
	MnemRemoteQuery  = "SYST:REM?"
	MnemKeylock      = "SYST:KEYL"
	MnemKeylockQuery = "SYST:KEYL?"
)
