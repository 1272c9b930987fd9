package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/admissions/core/admission"
)

type settingsRepository struct {
	db *DB
}

var _ admission.SettingsRepository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) admission.SettingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) QuerySessions(_ context.Context) ([]admission.Session, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sessions := make([]admission.Session, 0, len(repo.db.sessions))
	for class, open := range repo.db.sessions {
		sessions = append(sessions, admission.Session{Class: class, IsOpen: open})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Class < sessions[j].Class })
	return sessions, nil
}

func (repo *settingsRepository) SetSession(_ context.Context, class admission.Class, open bool) (admission.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.sessions[class] = open
	return admission.Session{Class: class, IsOpen: open}, nil
}

func (repo *settingsRepository) FieldVisibility(_ context.Context) (map[string]bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fields := make(map[string]bool, len(repo.db.fields))
	for name, visible := range repo.db.fields {
		fields[name] = visible
	}
	return fields, nil
}

func (repo *settingsRepository) SetFieldVisibility(_ context.Context, fields map[string]bool) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for name, visible := range fields {
		repo.db.fields[name] = visible
	}
	return nil
}

func (repo *settingsRepository) CreateTemplate(_ context.Context, tmpl admission.MessageTemplate) (admission.MessageTemplate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	tmpl.ID = repo.db.nextPK("message_templates")
	repo.db.templates[tmpl.ID] = &tmpl
	return tmpl, nil
}

func (repo *settingsRepository) GetTemplate(_ context.Context, id int) (admission.MessageTemplate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if tmpl, ok := repo.db.templates[id]; ok {
		return *tmpl, nil
	}
	return admission.MessageTemplate{}, admission.ErrTemplateNotFound
}

func (repo *settingsRepository) QueryTemplates(_ context.Context) ([]admission.MessageTemplate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tmpls := make([]admission.MessageTemplate, 0, len(repo.db.templates))
	for _, tmpl := range repo.db.templates {
		tmpls = append(tmpls, *tmpl)
	}
	// newest first
	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].ID > tmpls[j].ID })
	return tmpls, nil
}
