package forgetest

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kuitang/forge-e2e/internal/forgeapi"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

// option is one entry of a selection dropdown.
type option struct {
	Value string
	Label string
}

var (
	templateOptions = []option{{"0", "None"}, {"1", "Basic Kanban"}}
	cardOptions     = []option{{"0", "Text Only"}, {"1", "Images and Text"}}
)

func labelOf(opts []option, value string) (string, bool) {
	for _, o := range opts {
		if o.Value == value {
			return o.Label, true
		}
	}
	return "", false
}

type projectForm struct {
	Title        string
	Content      string
	TemplateType string
	CardType     string
}

// pageData is shared by every template; pages read the fields they need.
type pageData struct {
	Title    string
	SignedIn string
	Flash    string
	Required bool

	UserName string

	Owner           string
	Tab             string
	ProjectsEnabled bool
	ProjectCount    int
	CanWrite        bool
	Repos           []forgeapi.Repository
	Projects        []Project

	Error         string
	Form          projectForm
	Templates     []option
	CardTypes     []option
	TemplateLabel string
	CardLabel     string
}

func (f *Forge) render(w http.ResponseWriter, status int, name string, data pageData) {
	if err := f.r.Render(w, status, name, data); err != nil {
		f.log.Error("render_failed", "template", name, "error", err)
	}
}

func (f *Forge) handleNotFound(w http.ResponseWriter, r *http.Request) {
	f.render(w, http.StatusNotFound, "not_found.html", pageData{
		Title:    "Page Not Found",
		SignedIn: f.sessionUser(r),
	})
}

func (f *Forge) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if f.sessionUser(r) != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	f.render(w, http.StatusOK, "login.html", pageData{
		Title:    "Sign In",
		Required: !f.opts.SkipClientValidation,
	})
}

func (f *Forge) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("user_name"))
	password := r.PostForm.Get("password")

	f.mu.Lock()
	acct, ok := f.lookupUser(name)
	f.mu.Unlock()
	if !ok || name == "" || password == "" || acct.Password != password {
		f.log.Info("login_failed", "user_name", name)
		f.render(w, http.StatusOK, "login.html", pageData{
			Title:    "Sign In",
			Flash:    "Username or password is incorrect.",
			Required: !f.opts.SkipClientValidation,
			UserName: name,
		})
		return
	}
	f.signIn(w, acct.Name)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (f *Forge) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		f.mu.Lock()
		delete(f.sessions, c.Value)
		f.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/user/login", http.StatusSeeOther)
}

func (f *Forge) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := f.sessionUser(r)
	if user == "" {
		http.Redirect(w, r, "/user/login", http.StatusSeeOther)
		return
	}
	f.render(w, http.StatusOK, "dashboard.html", pageData{Title: user + " - Dashboard", SignedIn: user})
}

// ownerData fills the fields the owner header needs, or reports false when
// the owner does not exist.
func (f *Forge) ownerData(r *http.Request, tab string) (pageData, bool) {
	owner := chi.URLParam(r, "owner")
	f.mu.Lock()
	acct, ok := f.lookupUser(owner)
	var data pageData
	if ok {
		signedIn := f.sessions[sessionID(r)]
		data = pageData{
			SignedIn:        signedIn,
			Owner:           acct.Name,
			Tab:             tab,
			ProjectsEnabled: !f.opts.DisableProjects,
			ProjectCount:    len(f.projects[strings.ToLower(acct.Name)]),
			CanWrite:        strings.EqualFold(signedIn, acct.Name),
		}
	}
	f.mu.Unlock()
	return data, ok
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (f *Forge) handleProfile(w http.ResponseWriter, r *http.Request) {
	data, ok := f.ownerData(r, "overview")
	if !ok {
		f.handleNotFound(w, r)
		return
	}
	data.Title = data.Owner

	f.mu.Lock()
	for _, repo := range f.repos {
		if strings.EqualFold(repo.Owner.UserName, data.Owner) && (!repo.Private || data.CanWrite) {
			data.Repos = append(data.Repos, *repo)
		}
	}
	f.mu.Unlock()
	sort.Slice(data.Repos, func(i, j int) bool { return data.Repos[i].Name < data.Repos[j].Name })

	f.render(w, http.StatusOK, "profile.html", data)
}

func (f *Forge) handleProjects(w http.ResponseWriter, r *http.Request) {
	data, ok := f.ownerData(r, "projects")
	if !ok || !data.ProjectsEnabled {
		f.handleNotFound(w, r)
		return
	}
	data.Title = "Projects"
	data.Projects = f.Projects(data.Owner)
	f.render(w, http.StatusOK, "projects.html", data)
}

func (f *Forge) newProjectData(r *http.Request) (pageData, bool) {
	data, ok := f.ownerData(r, "projects")
	if !ok || !data.ProjectsEnabled || !data.CanWrite {
		return data, false
	}
	data.Title = "New Project"
	data.Required = !f.opts.SkipClientValidation
	data.Templates = templateOptions
	data.CardTypes = cardOptions
	data.Form = projectForm{TemplateType: templateOptions[0].Value, CardType: cardOptions[0].Value}
	return data, true
}

func (f *Forge) handleNewProjectPage(w http.ResponseWriter, r *http.Request) {
	if f.sessionUser(r) == "" {
		http.Redirect(w, r, "/user/login", http.StatusSeeOther)
		return
	}
	data, ok := f.newProjectData(r)
	if !ok {
		f.handleNotFound(w, r)
		return
	}
	data.TemplateLabel, _ = labelOf(templateOptions, data.Form.TemplateType)
	data.CardLabel, _ = labelOf(cardOptions, data.Form.CardType)
	f.render(w, http.StatusOK, "new_project.html", data)
}

func (f *Forge) handleNewProjectSubmit(w http.ResponseWriter, r *http.Request) {
	if f.sessionUser(r) == "" {
		http.Redirect(w, r, "/user/login", http.StatusSeeOther)
		return
	}
	data, ok := f.newProjectData(r)
	if !ok {
		f.handleNotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := projectForm{
		Title:        strings.TrimSpace(r.PostForm.Get("title")),
		Content:      r.PostForm.Get("content"),
		TemplateType: r.PostForm.Get("template_type"),
		CardType:     r.PostForm.Get("card_type"),
	}
	data.Form = form
	templateLabel, okTemplate := labelOf(templateOptions, form.TemplateType)
	cardLabel, okCard := labelOf(cardOptions, form.CardType)
	data.TemplateLabel, data.CardLabel = templateLabel, cardLabel

	switch {
	case form.Title == "":
		data.Error = "Title is required."
	case !okTemplate:
		data.Error = "Unknown project template."
	case !okCard:
		data.Error = "Unknown card preview type."
	}
	if data.Error != "" {
		f.log.Info("project_rejected", "owner", data.Owner, "reason", data.Error)
		f.render(w, http.StatusOK, "new_project.html", data)
		return
	}

	f.mu.Lock()
	f.nextID++
	p := Project{
		ID:           f.nextID,
		Owner:        data.Owner,
		Title:        form.Title,
		Content:      form.Content,
		TemplateType: templateLabel,
		CardType:     cardLabel,
		Created:      time.Now().UTC(),
	}
	key := strings.ToLower(data.Owner)
	f.projects[key] = append(f.projects[key], p)
	f.mu.Unlock()

	f.log.Info("project_created", "owner", data.Owner, "title", p.Title, "id", p.ID)
	http.Redirect(w, r, urlutil.OwnerPath(data.Owner, "-", "projects"), http.StatusSeeOther)
}
