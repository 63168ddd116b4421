package medications

import (
	"strconv"
	"strings"
	"time"
)

// FrequencyRule define cada cuánto se administra un medicamento.
// @Enum once_daily, twice_daily, three_times_daily, four_times_daily, weekly, monthly, as_needed
type FrequencyRule string

const (
	FrequencyOnceDaily       FrequencyRule = "once_daily"
	FrequencyTwiceDaily      FrequencyRule = "twice_daily"
	FrequencyThreeTimesDaily FrequencyRule = "three_times_daily"
	FrequencyFourTimesDaily  FrequencyRule = "four_times_daily"
	FrequencyWeekly          FrequencyRule = "weekly"
	FrequencyMonthly         FrequencyRule = "monthly"
	FrequencyAsNeeded        FrequencyRule = "as_needed"
)

// Valid indica si la regla es una de las soportadas.
func (f FrequencyRule) Valid() bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily,
		FrequencyFourTimesDaily, FrequencyWeekly, FrequencyMonthly, FrequencyAsNeeded:
		return true
	}
	return false
}

// Scheduled es false solo para as_needed: esa regla nunca genera dosis.
func (f FrequencyRule) Scheduled() bool {
	return f != FrequencyAsNeeded
}

// Form es la presentación del medicamento (tablet, syrup, ...). Texto libre.
type Form string

// Medication es el registro que entrega el colaborador externo de pacientes.
// El core lo lee, nunca lo modifica.
type Medication struct {
	ID        string
	PatientID string

	Name         string
	DosageAmount float64
	DosageUnit   string // "mg", "ml", etc.
	Form         Form

	Frequency FrequencyRule
	// Times sobreescribe los horarios por defecto de la regla ("08:00", "20:00").
	// Vacío => se usan los del generador.
	Times []string

	StartDate time.Time
	EndDate   *time.Time // nil => sin fecha de fin

	Active bool
}

// Label devuelve "Metformin 500 mg" para notificaciones y logs.
func (m Medication) Label() string {
	name := strings.TrimSpace(m.Name)
	if m.DosageAmount <= 0 || strings.TrimSpace(m.DosageUnit) == "" {
		return name
	}
	amount := strconv.FormatFloat(m.DosageAmount, 'f', -1, 64)
	return name + " " + amount + " " + strings.TrimSpace(m.DosageUnit)
}
