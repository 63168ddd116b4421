package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/starstech/medtrack-sub001/internal/domain/medications"
	"github.com/starstech/medtrack-sub001/internal/domain/reminders"
)

// MedicationSource simula el registro externo de medicamentos (dev/tests).
type MedicationSource struct {
	mu   sync.RWMutex
	byID map[string]medications.Medication
}

func NewMedicationSource(seed ...medications.Medication) *MedicationSource {
	s := &MedicationSource{byID: make(map[string]medications.Medication)}
	for _, m := range seed {
		_ = s.Put(m)
	}
	return s
}

func (s *MedicationSource) Put(m medications.Medication) error {
	if strings.TrimSpace(m.ID) == "" || strings.TrimSpace(m.PatientID) == "" {
		return errors.New("medication id and patient id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	return nil
}

func (s *MedicationSource) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, nil
}

func (s *MedicationSource) ListActive(ctx context.Context, patientID string) ([]medications.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range s.byID {
		if m.PatientID == patientID && m.Active {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PreferenceSource guarda preferencias por usuario.
type PreferenceSource struct {
	mu     sync.RWMutex
	byUser map[string]reminders.Preference
}

func NewPreferenceSource(seed ...reminders.Preference) *PreferenceSource {
	s := &PreferenceSource{byUser: make(map[string]reminders.Preference)}
	for _, p := range seed {
		_ = s.Put(p)
	}
	return s
}

func (s *PreferenceSource) Put(p reminders.Preference) error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("preference user id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[p.UserID] = p
	return nil
}

func (s *PreferenceSource) Get(ctx context.Context, userID string) (reminders.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byUser[userID]
	if !ok {
		return reminders.Preference{}, reminders.ErrPreferenceNotFound
	}
	return p, nil
}

// CareTeam resuelve destinatarios: el paciente más sus cuidadores.
type CareTeam struct {
	mu         sync.RWMutex
	caregivers map[string][]string
}

func NewCareTeam() *CareTeam {
	return &CareTeam{caregivers: make(map[string][]string)}
}

func (c *CareTeam) AddCaregiver(patientID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range c.caregivers[patientID] {
		if u == userID {
			return
		}
	}
	c.caregivers[patientID] = append(c.caregivers[patientID], userID)
}

func (c *CareTeam) RecipientsFor(ctx context.Context, patientID string) ([]string, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []string{patientID}
	for _, u := range c.caregivers[patientID] {
		if u != patientID {
			out = append(out, u)
		}
	}
	return out, nil
}
