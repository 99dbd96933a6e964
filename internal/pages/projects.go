package pages

import (
	"strings"
	"time"

	"github.com/kuitang/forge-e2e/internal/urlutil"
)

var (
	projectsNewButton = CSS("a.ui.primary.button[href$='/-/projects/new']")
	projectsTitles    = CSS(".milestone-list .milestone-card h3 a")
	projectsCounter   = CSS("a.item[href$='/-/projects'] .ui.small.label")
)

// ProjectList is the project board index at /{owner}/-/projects.
type ProjectList struct {
	page
	owner string
}

func newProjectList(s *Site, owner string) *ProjectList {
	p := &ProjectList{
		page: page{
			site:         s,
			name:         "project list",
			path:         urlutil.OwnerPath(owner, "-", "projects"),
			implicitWait: 5 * time.Second,
		},
		owner: owner,
	}
	newTitle := s.markers.NewProjectTitle
	listTitle := p.titleContains(s.markers.ProjectsTitle)
	formTitle := p.titleContains(newTitle)
	p.ready = func() (bool, error) {
		ok, err := listTitle()
		if err != nil || !ok {
			return false, err
		}
		onForm, err := formTitle()
		return !onForm, err
	}
	return p
}

// Owner is the user or organization whose projects are listed.
func (p *ProjectList) Owner() string { return p.owner }

// ProjectCount reads the counter on the projects tab.
func (p *ProjectList) ProjectCount() (int, error) {
	if err := p.requireReady(); err != nil {
		return 0, err
	}
	return p.counter("project count", projectsCounter)
}

// ProjectTitles lists the titles of the visible project cards.
func (p *ProjectList) ProjectTitles() ([]string, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	texts, err := p.site.driver.Texts(projectsTitles)
	if err != nil {
		return nil, elementErr(p.name, "list projects", projectsTitles, err)
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// HasProject reports whether a card titled title is listed.
func (p *ProjectList) HasProject(title string) (bool, error) {
	titles, err := p.ProjectTitles()
	if err != nil {
		return false, err
	}
	for _, t := range titles {
		if t == title {
			return true, nil
		}
	}
	return false, nil
}

// NewProject follows the "New Project" button.
func (p *ProjectList) NewProject() (*NewProject, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	if err := p.click("new project", projectsNewButton); err != nil {
		return nil, err
	}
	form := newNewProject(p.site, p.owner)
	if err := form.enter(); err != nil {
		return nil, err
	}
	return form, nil
}
