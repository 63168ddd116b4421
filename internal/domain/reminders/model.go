package reminders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starstech/medtrack-sub001/internal/domain/doses"
)

var (
	ErrInvalidOffset      = errors.New("invalid reminder offset")
	ErrInvalidPreference  = errors.New("invalid reminder preference")
	ErrPreferenceNotFound = errors.New("reminder preference not found")
)

// @Enum push, email
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// QuietHours es una ventana diaria [Start, End) en hora local. Puede cruzar medianoche.
// Start == End => ventana vacía.
type QuietHours struct {
	Enabled bool
	Start   doses.TimeOfDay
	End     doses.TimeOfDay
}

// Contains evalúa la hora de reloj de local (ya convertido a la zona del usuario).
func (q QuietHours) Contains(local time.Time) bool {
	if !q.Enabled {
		return false
	}

	m := local.Hour()*60 + local.Minute()
	start, end := q.Start.Minutes(), q.End.Minutes()
	switch {
	case start == end:
		return false
	case start < end:
		return m >= start && m < end
	default:
		// 22:00-07:00
		return m >= start || m < end
	}
}

// Preference es la configuración de recordatorios de un usuario (solo lectura).
type Preference struct {
	UserID string

	PushEnabled                bool
	EmailEnabled               bool
	MedicationRemindersEnabled bool

	// Minutos antes de scheduled_time. Se procesan deduplicados y ascendentes.
	OffsetsMinutes []int

	QuietHours QuietHours
	// Timezone IANA para quiet hours. Vacío => UTC.
	Timezone string
}

func (p Preference) Channels() []Channel {
	out := make([]Channel, 0, 2)
	if p.PushEnabled {
		out = append(out, ChannelPush)
	}
	if p.EmailEnabled {
		out = append(out, ChannelEmail)
	}
	return out
}

func (p Preference) Location() (*time.Location, error) {
	tz := strings.TrimSpace(p.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidPreference, tz, err)
	}
	return loc, nil
}

// Offsets valida (> 0), deduplica y ordena.
func (p Preference) Offsets() ([]int, error) {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(p.OffsetsMinutes))
	for _, o := range p.OffsetsMinutes {
		if o <= 0 {
			return nil, fmt.Errorf("%w: %d minutes", ErrInvalidOffset, o)
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Ints(out)
	return out, nil
}

// Intent es una decisión de "qué y cuándo" notificar. No se persiste.
type Intent struct {
	DoseID                 string
	FireAt                 time.Time
	OffsetMinutes          int
	SuppressedByQuietHours bool

	RecipientUserID string
	PatientID       string
	MedicationID    string
	MedicationName  string
	ScheduledTime   time.Time
	Channels        []Channel
}
