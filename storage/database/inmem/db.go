// Package inmemdb keeps every table in memory. It backs tests and local runs without Postgres.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
)

type DB struct {
	txMu sync.Mutex // serializes InTx units of work

	mu            sync.RWMutex
	pk            map[string]int
	schedules     map[string]*fee.Schedule // by class
	overrides     map[int]map[string]*fee.CategoryOverride
	applications  map[int]*admission.Application
	rollSequences map[string]int
	sessions      map[admission.Class]bool
	fields        map[string]bool
	templates     map[int]*admission.MessageTemplate
	notifications map[int]*notification.Notification
}

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		pk:            make(map[string]int),
		schedules:     make(map[string]*fee.Schedule),
		overrides:     make(map[int]map[string]*fee.CategoryOverride),
		applications:  make(map[int]*admission.Application),
		rollSequences: make(map[string]int),
		sessions:      make(map[admission.Class]bool),
		fields:        make(map[string]bool),
		templates:     make(map[int]*admission.MessageTemplate),
		notifications: make(map[int]*notification.Notification),
	}
}

// InTx runs fn alone: units of work never interleave. On error, applications and roll sequences
// are restored to their state before fn.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	apps, seqs := db.snapshot()
	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.applications, db.rollSequences = apps, seqs
		db.mu.Unlock()
		return err
	}
	return nil
}

// snapshot copies the tables InTx restores. Stored applications are replaced on write, never
// mutated in place by a unit of work, so copying the pointers is enough.
func (db *DB) snapshot() (map[int]*admission.Application, map[string]int) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	apps := make(map[int]*admission.Application, len(db.applications))
	for id, app := range db.applications {
		apps[id] = app
	}
	seqs := make(map[string]int, len(db.rollSequences))
	for prefix, last := range db.rollSequences {
		seqs[prefix] = last
	}
	return apps, seqs
}

// nextPK must be called with db.mu held.
func (db *DB) nextPK(table string) int {
	db.pk[table]++
	return db.pk[table]
}
