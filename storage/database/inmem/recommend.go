package inmemdb

import (
	"sort"

	"github.com/heroesdelapatria/portal/core/recommend"
)

type recommendRepository struct {
	profiles     *profileTable
	interactions *interactionTable
}

var _ recommend.Repository = (*recommendRepository)(nil) // interface compliance check

func NewRecommendRepository(db *DB) recommend.Repository {
	return &recommendRepository{profiles: db.profile, interactions: db.interaction}
}

func (repo *recommendRepository) GetProfile(userID string) (recommend.UserProfile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	if p, ok := repo.profiles.table[userID]; ok {
		return p.Clone(), nil
	}
	return recommend.UserProfile{}, recommend.ErrProfileNotFound
}

func (repo *recommendRepository) SaveProfile(profile recommend.UserProfile) (recommend.UserProfile, error) {
	repo.profiles.Lock()
	defer repo.profiles.Unlock()

	if _, ok := repo.profiles.table[profile.UserID]; !ok {
		repo.profiles.order = append(repo.profiles.order, profile.UserID)
	}
	stored := profile.Clone()
	repo.profiles.table[profile.UserID] = &stored
	return profile.Clone(), nil
}

func (repo *recommendRepository) QueryProfiles(exclude string, limit int) ([]recommend.UserProfile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	profiles := make([]recommend.UserProfile, 0)
	for _, id := range repo.profiles.order {
		if limit >= 0 && len(profiles) >= limit {
			break
		}
		if id == exclude {
			continue
		}
		profiles = append(profiles, repo.profiles.table[id].Clone())
	}
	return profiles, nil
}

func (repo *recommendRepository) CountProfiles() (int, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()
	return len(repo.profiles.table), nil
}

func (repo *recommendRepository) SaveInteraction(in recommend.Interaction) (recommend.Interaction, error) {
	repo.interactions.Lock()
	defer repo.interactions.Unlock()

	stored := in
	repo.interactions.table[recommend.InteractionKey(in.UserID, in.ItemID)] = &stored
	return in, nil
}

func (repo *recommendRepository) GetInteraction(userID, itemID string) (recommend.Interaction, error) {
	repo.interactions.RLock()
	defer repo.interactions.RUnlock()

	if in, ok := repo.interactions.table[recommend.InteractionKey(userID, itemID)]; ok {
		return *in, nil
	}
	return recommend.Interaction{}, recommend.ErrInteractionNotFound
}

// QueryUserInteractions returns the interactions of a user, oldest first.
func (repo *recommendRepository) QueryUserInteractions(userID string) ([]recommend.Interaction, error) {
	repo.interactions.RLock()
	defer repo.interactions.RUnlock()

	var ins []recommend.Interaction
	for _, in := range repo.interactions.table {
		if in.UserID == userID {
			ins = append(ins, *in)
		}
	}
	sort.Slice(ins, func(i, j int) bool {
		if ins[i].Timestamp.Equal(ins[j].Timestamp) {
			return ins[i].ItemID < ins[j].ItemID
		}
		return ins[i].Timestamp.Before(ins[j].Timestamp)
	})
	return ins, nil
}

func (repo *recommendRepository) CountInteractions() (int, error) {
	repo.interactions.RLock()
	defer repo.interactions.RUnlock()
	return len(repo.interactions.table), nil
}
