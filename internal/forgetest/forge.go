// Package forgetest is an in-process stand-in for the forge. It serves the
// login, dashboard, profile and project pages with the markup the page
// components target, plus the /api/v1 repository endpoints, from memory.
package forgetest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kuitang/forge-e2e/internal/forgeapi"
	"github.com/kuitang/forge-e2e/internal/obs"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

const sessionCookie = "i_like_forge"

// User is a seeded account.
type User struct {
	Name     string
	Password string
	Token    string
	Email    string
}

// DefaultUser is the account the scenarios sign in with.
var DefaultUser = User{
	Name:     "maias",
	Password: "maias123",
	Token:    "0123456789abcdef0123456789abcdef01234567",
	Email:    "maias@example.com",
}

// Options configure a Forge.
type Options struct {
	// Users to seed. Empty means DefaultUser only.
	Users []User
	// DisableProjects hides the projects tab and 404s the project pages.
	DisableProjects bool
	// SkipClientValidation drops the required attributes so empty fields
	// reach the server and come back with an error banner.
	SkipClientValidation bool
	// APIRateLimit throttles the REST API per token.
	APIRateLimit RateLimit
	Logger       *slog.Logger
}

// Project is a project board as stored by the forge.
type Project struct {
	ID           int64
	Owner        string
	Title        string
	Content      string
	TemplateType string
	CardType     string
	Created      time.Time
}

// Forge holds the in-memory state behind the pages and the API.
type Forge struct {
	opts Options
	log  *slog.Logger
	r    *Renderer

	mu       sync.Mutex
	users    map[string]*account
	tokens   map[string]string
	sessions map[string]string
	projects map[string][]Project
	repos    map[string]*forgeapi.Repository
	nextID   int64
	baseURL  string

	limiter *tokenLimiter
}

type account struct {
	User
	id int64
}

// New returns a Forge seeded with opts.Users.
func New(opts Options) (*Forge, error) {
	if len(opts.Users) == 0 {
		opts.Users = []User{DefaultUser}
	}
	if opts.Logger == nil {
		opts.Logger = obs.Pkg("forgetest")
	}
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	f := &Forge{
		opts:     opts,
		log:      opts.Logger,
		r:        r,
		users:    make(map[string]*account),
		tokens:   make(map[string]string),
		sessions: make(map[string]string),
		projects: make(map[string][]Project),
		repos:    make(map[string]*forgeapi.Repository),
	}
	if opts.APIRateLimit.RPS > 0 {
		f.limiter = newTokenLimiter(opts.APIRateLimit)
	}
	for _, u := range opts.Users {
		if u.Name == "" {
			return nil, fmt.Errorf("forgetest: user with empty name")
		}
		f.nextID++
		f.users[strings.ToLower(u.Name)] = &account{User: u, id: f.nextID}
		if u.Token != "" {
			f.tokens[u.Token] = u.Name
		}
	}
	return f, nil
}

// Start serves a new Forge on a local listener until t ends.
func Start(t testing.TB, opts Options) *Server {
	t.Helper()
	f, err := New(opts)
	if err != nil {
		t.Fatalf("forgetest: %v", err)
	}
	ts := httptest.NewServer(f.Handler())
	t.Cleanup(ts.Close)
	f.SetBaseURL(ts.URL)
	return &Server{Forge: f, URL: ts.URL}
}

// Server is a running Forge.
type Server struct {
	*Forge
	URL string
}

// SetBaseURL sets the address used in html_url and clone_url fields.
// Without one the forge reports the origin each request arrived on.
func (f *Forge) SetBaseURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURL = strings.TrimRight(u, "/")
}

// origin is the base of links handed out in reply to r. f.mu must be held.
func (f *Forge) origin(r *http.Request) string {
	if f.baseURL != "" {
		return f.baseURL
	}
	return urlutil.OriginFromRequest(r, "http://localhost")
}

// Handler returns the forge's routes.
func (f *Forge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(obs.AccessLogMiddleware("forgetest"))

	r.Route("/api/v1", func(r chi.Router) {
		if f.limiter != nil {
			r.Use(f.limiter.middleware)
		}
		r.Get("/user", f.apiCurrentUser)
		r.Post("/user/repos", f.apiCreateUserRepo)
		r.Get("/repos/{owner}/{repo}", f.apiGetRepo)
		r.Delete("/repos/{owner}/{repo}", f.apiDeleteRepo)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
	})

	r.Get("/user/login", f.handleLoginPage)
	r.Post("/user/login", f.handleLoginSubmit)
	r.Get("/user/logout", f.handleLogout)
	r.Get("/", f.handleDashboard)
	r.Get("/{owner}", f.handleProfile)
	r.Get("/{owner}/-/projects", f.handleProjects)
	r.Get("/{owner}/-/projects/new", f.handleNewProjectPage)
	r.Post("/{owner}/-/projects/new", f.handleNewProjectSubmit)
	r.NotFound(f.handleNotFound)
	return r
}

// Projects returns owner's projects, oldest first.
func (f *Forge) Projects(owner string) []Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.projects[strings.ToLower(owner)]
	out := make([]Project, len(list))
	copy(out, list)
	return out
}

// Repo returns a copy of owner/name if it exists.
func (f *Forge) Repo(owner, name string) (forgeapi.Repository, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repos[repoKey(owner, name)]
	if !ok {
		return forgeapi.Repository{}, false
	}
	return *repo, true
}

// RepoNames lists every repository as owner/name, sorted.
func (f *Forge) RepoNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.repos))
	for _, repo := range f.repos {
		names = append(names, repo.FullName)
	}
	sort.Strings(names)
	return names
}

func (f *Forge) lookupUser(name string) (*account, bool) {
	a, ok := f.users[strings.ToLower(name)]
	return a, ok
}

func (f *Forge) signIn(w http.ResponseWriter, name string) {
	sid := uuid.NewString()
	f.mu.Lock()
	f.sessions[sid] = name
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
}

// sessionUser returns the signed-in user of r, or "".
func (f *Forge) sessionUser(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[c.Value]
}

func repoKey(owner, name string) string {
	return strings.ToLower(owner) + "/" + strings.ToLower(name)
}
