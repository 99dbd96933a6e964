package forgetest

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kuitang/forge-e2e/internal/forgeapi"
)

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// tokenUser resolves "Authorization: token <t>" (or Bearer) to a user name.
func (f *Forge) tokenUser(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return "", false
	}
	if !strings.EqualFold(scheme, "token") && !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.tokens[strings.TrimSpace(token)]
	return name, ok
}

func (f *Forge) apiUser(name string) *forgeapi.User {
	acct, ok := f.lookupUser(name)
	if !ok {
		return nil
	}
	return &forgeapi.User{ID: acct.id, UserName: acct.Name, Email: acct.Email}
}

// apiCurrentUser handles GET /api/v1/user.
func (f *Forge) apiCurrentUser(w http.ResponseWriter, r *http.Request) {
	name, ok := f.tokenUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}
	f.mu.Lock()
	u := f.apiUser(name)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

// apiCreateUserRepo handles POST /api/v1/user/repos.
func (f *Forge) apiCreateUserRepo(w http.ResponseWriter, r *http.Request) {
	name, ok := f.tokenUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}

	var opt forgeapi.CreateRepoOption
	if err := json.NewDecoder(r.Body).Decode(&opt); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON: "+err.Error())
		return
	}
	if opt.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "[Name]: Required")
		return
	}
	if !repoNamePattern.MatchString(opt.Name) || len(opt.Name) > 100 {
		writeError(w, http.StatusUnprocessableEntity, "[Name]: Should contain only alphanumeric, dash ('-'), underscore ('_') and dot ('.') characters.")
		return
	}

	f.mu.Lock()
	key := repoKey(name, opt.Name)
	if _, exists := f.repos[key]; exists {
		f.mu.Unlock()
		writeError(w, http.StatusConflict, "The repository with the same name already exists.")
		return
	}
	branch := opt.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	owner := f.apiUser(name)
	base := f.origin(r)
	f.nextID++
	repo := &forgeapi.Repository{
		ID:            f.nextID,
		Owner:         owner,
		Name:          opt.Name,
		FullName:      owner.UserName + "/" + opt.Name,
		Description:   opt.Description,
		Empty:         !opt.AutoInit,
		Private:       opt.Private,
		HTMLURL:       base + "/" + owner.UserName + "/" + opt.Name,
		CloneURL:      base + "/" + owner.UserName + "/" + opt.Name + ".git",
		DefaultBranch: branch,
		Created:       time.Now().UTC(),
	}
	f.repos[key] = repo
	out := *repo
	f.mu.Unlock()

	f.log.Info("repo_created", "repo", out.FullName, "private", out.Private)
	writeJSON(w, http.StatusCreated, out)
}

// apiGetRepo handles GET /api/v1/repos/{owner}/{repo}.
func (f *Forge) apiGetRepo(w http.ResponseWriter, r *http.Request) {
	caller, _ := f.tokenUser(r)
	owner, name := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")

	f.mu.Lock()
	repo, ok := f.repos[repoKey(owner, name)]
	var out forgeapi.Repository
	if ok {
		out = *repo
	}
	f.mu.Unlock()

	if !ok || (out.Private && !strings.EqualFold(caller, out.Owner.UserName)) {
		writeError(w, http.StatusNotFound, "The target couldn't be found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// apiDeleteRepo handles DELETE /api/v1/repos/{owner}/{repo}.
func (f *Forge) apiDeleteRepo(w http.ResponseWriter, r *http.Request) {
	caller, ok := f.tokenUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}
	owner, name := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")

	f.mu.Lock()
	key := repoKey(owner, name)
	repo, exists := f.repos[key]
	isOwner := exists && strings.EqualFold(caller, repo.Owner.UserName)
	switch {
	case !exists || (repo.Private && !isOwner):
		f.mu.Unlock()
		writeError(w, http.StatusNotFound, "The target couldn't be found.")
		return
	case !isOwner:
		f.mu.Unlock()
		writeError(w, http.StatusForbidden, "Given user is not owner of organization.")
		return
	}
	delete(f.repos, key)
	f.mu.Unlock()

	f.log.Info("repo_deleted", "repo", repo.FullName)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, forgeapi.ErrorBody{Message: message})
}
