// Package api runs the repository lifecycle through the forge's REST API.
// It targets the in-process forge unless FORGE_BASE_URL and FORGE_API_TOKEN
// name a live one.
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/forge-e2e/internal/config"
	"github.com/kuitang/forge-e2e/internal/fixtures"
	"github.com/kuitang/forge-e2e/internal/forgeapi"
	"github.com/kuitang/forge-e2e/internal/forgetest"
	"github.com/kuitang/forge-e2e/internal/scenario"
)

type apiTestEnv struct {
	client   *forgeapi.Client
	fixtures fixtures.Fixtures
	forge    *forgetest.Server
}

func setupAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	fx, err := fixtures.FromConfig(cfg)
	require.NoError(t, err)

	env := &apiTestEnv{fixtures: fx}
	baseURL := cfg.BaseURL
	if !cfg.HasLiveTarget() {
		env.forge = forgetest.Start(t, forgetest.Options{})
		baseURL = env.forge.URL
		if fx.Credentials.Token == "" {
			env.fixtures.Credentials.Token = forgetest.DefaultUser.Token
		}
	} else if fx.Credentials.Token == "" {
		t.Skip("FORGE_API_TOKEN is not set")
	}

	env.client = forgeapi.NewClient(baseURL, forgeapi.Options{
		Token: env.fixtures.Credentials.Token,
		RPS:   cfg.APIRPS,
		Burst: cfg.APIBurst,
	})
	return env
}

func TestAPI_CreateAndDeleteRepo(t *testing.T) {
	env := setupAPITestEnv(t)
	ctx := context.Background()
	want := env.fixtures.Repo

	me, _, err := env.client.CurrentUser(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		// Leave nothing behind on a live forge if an assertion stopped the test.
		_, _ = env.client.DeleteRepo(context.Background(), me.UserName, want.Name)
	})

	repo, resp, err := env.client.CreateUserRepo(ctx, forgeapi.CreateRepoOption{
		Name:    want.Name,
		Private: want.Private,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, want.Name, repo.Name)
	assert.Equal(t, want.Private, repo.Private)

	resp, err = env.client.DeleteRepo(ctx, me.UserName, want.Name)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, _, err = env.client.GetRepo(ctx, me.UserName, want.Name)
	assert.Equal(t, http.StatusNotFound, forgeapi.StatusOf(err))
}

func TestAPI_RepoLifecycleScenario(t *testing.T) {
	env := setupAPITestEnv(t)
	sc := scenario.Env{Fixtures: env.fixtures}
	sc.Fixtures.Repo.Name = "forge-e2e-" + uuid.NewString()[:8]

	require.NoError(t, sc.RepoLifecycle(context.Background(), env.client))
	if env.forge != nil {
		assert.Empty(t, env.forge.RepoNames())
	}
}

func TestAPI_DuplicateRepoConflicts(t *testing.T) {
	env := setupAPITestEnv(t)
	ctx := context.Background()
	name := "forge-e2e-dup-" + uuid.NewString()[:8]

	me, _, err := env.client.CurrentUser(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = env.client.DeleteRepo(context.Background(), me.UserName, name) })

	_, _, err = env.client.CreateUserRepo(ctx, forgeapi.CreateRepoOption{Name: name})
	require.NoError(t, err)
	_, _, err = env.client.CreateUserRepo(ctx, forgeapi.CreateRepoOption{Name: name})
	assert.Equal(t, http.StatusConflict, forgeapi.StatusOf(err))
}

func TestAPI_DeleteMissingRepo(t *testing.T) {
	env := setupAPITestEnv(t)
	ctx := context.Background()

	me, _, err := env.client.CurrentUser(ctx)
	require.NoError(t, err)
	_, err = env.client.DeleteRepo(ctx, me.UserName, "forge-e2e-missing-"+uuid.NewString()[:8])
	assert.Equal(t, http.StatusNotFound, forgeapi.StatusOf(err))
}
