// Package fixtures carga medicamentos, preferencias y cuidadores desde YAML
// hacia los adapters en memoria. Solo se usa en modo dev (sin DSN).
package fixtures

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starstech/medtrack-sub001/internal/adapters/storage/memory"
	"github.com/starstech/medtrack-sub001/internal/domain/doses"
	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
)

const dateLayout = "2006-01-02"

type File struct {
	Medications []Medication `yaml:"medications"`
	Preferences []Preference `yaml:"preferences"`
	Caregivers  []Caregiver  `yaml:"caregivers"`
}

type Medication struct {
	ID           string   `yaml:"id"`
	PatientID    string   `yaml:"patient_id"`
	Name         string   `yaml:"name"`
	DosageAmount float64  `yaml:"dosage_amount"`
	DosageUnit   string   `yaml:"dosage_unit"`
	Form         string   `yaml:"form"`
	Frequency    string   `yaml:"frequency"`
	Times        []string `yaml:"times"`
	StartDate    string   `yaml:"start_date"`
	EndDate      string   `yaml:"end_date"`
	Active       *bool    `yaml:"active"` // nil => true
}

type Preference struct {
	UserID              string     `yaml:"user_id"`
	Push                bool       `yaml:"push"`
	Email               bool       `yaml:"email"`
	MedicationReminders *bool      `yaml:"medication_reminders"` // nil => true
	OffsetsMinutes      []int      `yaml:"offsets_minutes"`
	QuietHours          QuietHours `yaml:"quiet_hours"`
	Timezone            string     `yaml:"timezone"`
}

type QuietHours struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
}

type Caregiver struct {
	PatientID string `yaml:"patient_id"`
	UserID    string `yaml:"user_id"`
}

// Load lee y valida el archivo. Campos desconocidos => error.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// Apply carga todo en los sources. Se detiene en el primer registro inválido.
func (f *File) Apply(meds *memory.MedicationSource, prefs *memory.PreferenceSource, team *memory.CareTeam) error {
	for i, m := range f.Medications {
		med, err := m.toDomain()
		if err != nil {
			return fmt.Errorf("medications[%d]: %w", i, err)
		}
		if err := meds.Put(med); err != nil {
			return fmt.Errorf("medications[%d]: %w", i, err)
		}
	}

	for i, p := range f.Preferences {
		pref, err := p.toDomain()
		if err != nil {
			return fmt.Errorf("preferences[%d]: %w", i, err)
		}
		if err := prefs.Put(pref); err != nil {
			return fmt.Errorf("preferences[%d]: %w", i, err)
		}
	}

	for i, c := range f.Caregivers {
		if strings.TrimSpace(c.PatientID) == "" || strings.TrimSpace(c.UserID) == "" {
			return fmt.Errorf("caregivers[%d]: patient_id and user_id required", i)
		}
		team.AddCaregiver(c.PatientID, c.UserID)
	}
	return nil
}

func (m Medication) toDomain() (medications.Medication, error) {
	freq := medications.FrequencyRule(strings.TrimSpace(m.Frequency))
	if !freq.Valid() {
		return medications.Medication{}, fmt.Errorf("unknown frequency %q", m.Frequency)
	}

	start, err := time.Parse(dateLayout, strings.TrimSpace(m.StartDate))
	if err != nil {
		return medications.Medication{}, fmt.Errorf("start_date: %w", err)
	}

	var end *time.Time
	if s := strings.TrimSpace(m.EndDate); s != "" {
		e, err := time.Parse(dateLayout, s)
		if err != nil {
			return medications.Medication{}, fmt.Errorf("end_date: %w", err)
		}
		end = &e
	}

	for _, t := range m.Times {
		if _, err := doses.ParseTimeOfDay(t); err != nil {
			return medications.Medication{}, fmt.Errorf("times: %w", err)
		}
	}

	active := true
	if m.Active != nil {
		active = *m.Active
	}

	return medications.Medication{
		ID:           m.ID,
		PatientID:    m.PatientID,
		Name:         m.Name,
		DosageAmount: m.DosageAmount,
		DosageUnit:   m.DosageUnit,
		Form:         medications.Form(m.Form),
		Frequency:    freq,
		Times:        m.Times,
		StartDate:    start,
		EndDate:      end,
		Active:       active,
	}, nil
}

func (p Preference) toDomain() (reminders.Preference, error) {
	enabled := true
	if p.MedicationReminders != nil {
		enabled = *p.MedicationReminders
	}

	out := reminders.Preference{
		UserID:                     p.UserID,
		PushEnabled:                p.Push,
		EmailEnabled:               p.Email,
		MedicationRemindersEnabled: enabled,
		OffsetsMinutes:             p.OffsetsMinutes,
		Timezone:                   p.Timezone,
	}
	if _, err := out.Offsets(); err != nil {
		return reminders.Preference{}, err
	}
	if _, err := out.Location(); err != nil {
		return reminders.Preference{}, err
	}

	if p.QuietHours.Enabled {
		start, err := doses.ParseTimeOfDay(p.QuietHours.Start)
		if err != nil {
			return reminders.Preference{}, fmt.Errorf("quiet_hours.start: %w", err)
		}
		end, err := doses.ParseTimeOfDay(p.QuietHours.End)
		if err != nil {
			return reminders.Preference{}, fmt.Errorf("quiet_hours.end: %w", err)
		}
		out.QuietHours = reminders.QuietHours{Enabled: true, Start: start, End: end}
	}
	return out, nil
}
