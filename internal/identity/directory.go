package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"canvas-studio/internal/models"
	"canvas-studio/internal/repository"

	"github.com/jellydator/ttlcache/v3"
)

// SearchLimit caps user search results
const SearchLimit = 10

// UserStore is what the directory needs from the users table
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	SearchPrefix(ctx context.Context, q string, limit int) ([]*models.User, error)
}

// Directory resolves user profiles, caching lookups by id
type Directory struct {
	store UserStore
	cache *ttlcache.Cache[string, *models.User]
}

func NewDirectory(store UserStore, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache := ttlcache.New[string, *models.User](
		ttlcache.WithTTL[string, *models.User](ttl),
		ttlcache.WithCapacity[string, *models.User](10_000),
	)
	return &Directory{store: store, cache: cache}
}

// Start runs expiry cleanup in the background
func (d *Directory) Start() {
	go d.cache.Start()
}

func (d *Directory) Shutdown() {
	d.cache.Stop()
}

// Lookup returns a user by id
func (d *Directory) Lookup(ctx context.Context, id string) (*models.User, error) {
	if item := d.cache.Get(id); item != nil {
		return item.Value(), nil
	}

	user, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Set(id, user, ttlcache.DefaultTTL)
	return user, nil
}

// LookupMany resolves ids in order. Unknown ids get a placeholder profile.
func (d *Directory) LookupMany(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	found := make(map[string]*models.User, len(ids))
	var missing []string
	for _, id := range ids {
		if item := d.cache.Get(id); item != nil {
			found[id] = item.Value()
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		users, err := d.store.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to look up users: %w", err)
		}
		for _, u := range users {
			found[u.ID] = u
			d.cache.Set(u.ID, u, ttlcache.DefaultTTL)
		}
	}

	out := make([]models.UserProfile, 0, len(ids))
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			u = models.PlaceholderUser(id)
		}
		out = append(out, u.Profile())
	}
	return out, nil
}

// Search matches users by prefix; an empty query returns nothing
func (d *Directory) Search(ctx context.Context, q string) ([]models.UserProfile, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.UserProfile{}, nil
	}

	users, err := d.store.SearchPrefix(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

// Upsert stores a user pushed by the identity provider and refreshes the cache
func (d *Directory) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	saved, err := d.store.Upsert(ctx, user)
	if err != nil {
		return nil, err
	}
	d.cache.Set(saved.ID, saved, ttlcache.DefaultTTL)
	return saved, nil
}

// MetaFor builds the room identity of a user id. Unknown users keep their
// id as display name.
func (d *Directory) MetaFor(ctx context.Context, userID string) (models.UserMeta, error) {
	user, err := d.Lookup(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return MetaForUser(models.PlaceholderUser(userID)), nil
	}
	if err != nil {
		return models.UserMeta{}, err
	}
	return MetaForUser(user), nil
}
