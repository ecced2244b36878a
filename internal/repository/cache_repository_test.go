package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "sga", nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "analytics:attendance", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "analytics:attendance", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "analytics:*"))
	assert.NoError(t, repo.Ping(ctx))
}

func TestCacheRepositoryNamespacing(t *testing.T) {
	assert.Equal(t, "sga:dashboard", NewCacheRepository(nil, "sga", nil).key("dashboard"))
	assert.Equal(t, "dashboard", NewCacheRepository(nil, "", nil).key("dashboard"))
}
