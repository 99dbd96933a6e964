// Package scenario runs the end-to-end flows against a forge: sign in,
// create a project through the pages, and create then delete a repository
// through the REST API. The CLI and the test suites share these flows.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kuitang/forge-e2e/internal/artifacts"
	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/fixtures"
	"github.com/kuitang/forge-e2e/internal/forgeapi"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/pages"
)

// Driver is a page driver that can also dump its page for artifacts.
type Driver interface {
	pages.Driver
	HTML() (string, error)
}

// Env is what every flow needs.
type Env struct {
	BaseURL  string
	Timing   pages.Timing
	Fixtures fixtures.Fixtures
	// Artifacts receives the page of a failed flow. Nil disables capture.
	Artifacts artifacts.Store
	Logger    *slog.Logger
}

// Result is the outcome of one flow.
type Result struct {
	Name      string
	Err       error
	Duration  time.Duration
	Artifacts []string
}

// OK reports whether the flow passed.
func (r Result) OK() bool { return r.Err == nil }

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return obs.Pkg("scenario")
}

func (e Env) site(d pages.Driver) (*pages.Site, error) {
	return pages.NewSite(d, pages.Options{
		BaseURL: e.BaseURL,
		Timing:  e.Timing,
		Logger:  e.logger(),
	})
}

// Run executes fn as the named scenario. When fn fails and d is not nil,
// the current page is captured to e.Artifacts before Run returns.
func (e Env) Run(ctx context.Context, name string, d Driver, fn func(ctx context.Context) error) Result {
	ctx = obs.WithScenario(ctx, obs.Scenario{
		Name:     name,
		Target:   e.BaseURL,
		Username: e.Fixtures.Credentials.Username,
	})
	logger := obs.From(ctx).With("pkg", "scenario")
	logger.Info("scenario_start")

	start := time.Now()
	err := fn(ctx)
	res := Result{Name: name, Err: err, Duration: time.Since(start)}

	if err != nil {
		logger.Error("scenario_failed", "error", err, "code", errs.CodeOf(err), "duration", res.Duration)
		if d != nil && e.Artifacts != nil {
			locs, capErr := artifacts.Capture(ctx, e.Artifacts, d, name)
			res.Artifacts = locs
			if capErr != nil {
				logger.Warn("artifact_capture_failed", "error", capErr)
			}
		}
		return res
	}
	logger.Info("scenario_passed", "duration", res.Duration)
	return res
}

// SignIn opens the login page and signs in with the fixture credentials.
func (e Env) SignIn(d pages.Driver) (*pages.Home, error) {
	site, err := e.site(d)
	if err != nil {
		return nil, err
	}
	login, err := site.OpenLogin()
	if err != nil {
		return nil, err
	}
	creds := e.Fixtures.Credentials
	home, err := login.SubmitValid(creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	signedIn, err := home.IsSignedIn()
	if err != nil {
		return nil, err
	}
	if !signedIn {
		return nil, errs.New(errs.UnexpectedOutcome, "home page shows no signed-in user")
	}
	return home, nil
}

// CreateProject signs in, walks Home → Profile → Projects → New Project,
// fills the form from the fixtures and submits it. It returns the project
// list the forge lands on.
func (e Env) CreateProject(d pages.Driver) (*pages.ProjectList, error) {
	home, err := e.SignIn(d)
	if err != nil {
		return nil, err
	}
	list, err := e.projectList(d, home)
	if err != nil {
		return nil, err
	}
	form, err := list.NewProject()
	if err != nil {
		return nil, err
	}

	p := e.Fixtures.Project
	steps := []func() error{
		func() error { return form.SetTitle(p.Title) },
		func() error { return form.SetDescription(p.Description) },
		func() error { return form.SelectTemplate(p.Template) },
		func() error { return form.SelectCardPreview(p.CardPreview) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	outcome, err := form.Create()
	if err != nil {
		return nil, err
	}
	created, ok := outcome.Created()
	if !ok {
		msg := ""
		if rejected, ok := outcome.Rejected(); ok {
			msg, _ = rejected.ValidationMessage()
		}
		return nil, errs.New(errs.UnexpectedOutcome, fmt.Sprintf("project %q was rejected: %s", p.Title, msg))
	}

	found, err := created.HasProject(p.Title)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.New(errs.UnexpectedOutcome, fmt.Sprintf("project %q missing from the list", p.Title))
	}
	return created, nil
}

// projectList follows the profile's projects tab for a personal owner and
// opens the org's list directly otherwise.
func (e Env) projectList(d pages.Driver, home *pages.Home) (*pages.ProjectList, error) {
	creds := e.Fixtures.Credentials
	if creds.Org != "" && creds.Org != creds.Username {
		site, err := e.site(d)
		if err != nil {
			return nil, err
		}
		return site.OpenProjectList(creds.Org)
	}
	profile, err := home.OpenProfile()
	if err != nil {
		return nil, err
	}
	return profile.OpenProjects()
}

// RepoLifecycle creates the fixture repository, checks the forge's answer
// and deletes it again. A leftover repository from an aborted run is
// removed first.
func (e Env) RepoLifecycle(ctx context.Context, client *forgeapi.Client) error {
	me, _, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("resolve token owner: %w", err)
	}
	want := e.Fixtures.Repo

	if _, _, err := client.GetRepo(ctx, me.UserName, want.Name); err == nil {
		e.logger().Warn("repo_leftover", "repo", me.UserName+"/"+want.Name)
		if _, err := client.DeleteRepo(ctx, me.UserName, want.Name); err != nil {
			return err
		}
	} else if forgeapi.StatusOf(err) != http.StatusNotFound {
		return err
	}

	repo, resp, err := client.CreateUserRepo(ctx, forgeapi.CreateRepoOption{Name: want.Name, Private: want.Private})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return errs.New(errs.UnexpectedOutcome, fmt.Sprintf("create repo: status %d, want 201", resp.StatusCode))
	}
	if repo.Name != want.Name || repo.Private != want.Private {
		return errs.New(errs.UnexpectedOutcome, fmt.Sprintf("create repo: got name=%q private=%t", repo.Name, repo.Private))
	}

	resp, err = client.DeleteRepo(ctx, me.UserName, want.Name)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return errs.New(errs.UnexpectedOutcome, fmt.Sprintf("delete repo: status %d, want 204", resp.StatusCode))
	}

	if _, _, err := client.GetRepo(ctx, me.UserName, want.Name); forgeapi.StatusOf(err) != http.StatusNotFound {
		return errs.Wrap(errs.UnexpectedOutcome, "repository still readable after delete", err)
	}
	return nil
}
