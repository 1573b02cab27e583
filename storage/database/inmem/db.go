package inmemdb

import (
	"sync"

	"github.com/heroesdelapatria/portal/core/recommend"
)

type (
	// DB is a process-local store. Its content is lost on restart.
	DB struct {
		profile     *profileTable
		interaction *interactionTable
	}

	profileTable struct {
		sync.RWMutex
		order []string // insertion order
		table map[string]*recommend.UserProfile
	}

	interactionTable struct {
		sync.RWMutex
		table map[string]*recommend.Interaction // keyed by recommend.InteractionKey
	}
)

func Open() (*DB, error) {
	db := &DB{
		profile:     &profileTable{table: make(map[string]*recommend.UserProfile)},
		interaction: &interactionTable{table: make(map[string]*recommend.Interaction)},
	}
	return db, nil
}
