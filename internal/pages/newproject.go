package pages

import (
	"fmt"
	"time"

	"github.com/kuitang/forge-e2e/internal/urlutil"
)

var (
	newProjectTitle       = CSS("input[name='title']")
	newProjectContent     = CSS("textarea[name='content']")
	newProjectBold        = CSS(".markdown-toolbar md-bold")
	newProjectSubmit      = CSS("form.ui.form button.ui.primary.button")
	newProjectError       = CSS(".ui.negative.message")
	newProjectTemplate    = dropdown("template_type")
	newProjectCardPreview = dropdown("card_type")
)

type dropdownLocators struct {
	toggle   Locator
	options  Locator
	selected Locator
}

func dropdown(input string) dropdownLocators {
	root := fmt.Sprintf(".ui.selection.dropdown:has(input[name='%s'])", input)
	return dropdownLocators{
		toggle:   CSS(root),
		options:  CSS(root + " .menu .item"),
		selected: CSS(root + " > .text"),
	}
}

// NewProject is the project creation form at /{owner}/-/projects/new.
type NewProject struct {
	page
	owner string
}

func newNewProject(s *Site, owner string) *NewProject {
	p := &NewProject{
		page: page{
			site:         s,
			name:         "new project",
			path:         urlutil.OwnerPath(owner, "-", "projects", "new"),
			implicitWait: 10 * time.Second,
		},
		owner: owner,
	}
	p.ready = p.titleContains(s.markers.NewProjectTitle)
	return p
}

// Owner is the user or organization the project is created under.
func (p *NewProject) Owner() string { return p.owner }

func (p *NewProject) SetTitle(title string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	return p.fill("title", newProjectTitle, title)
}

func (p *NewProject) SetDescription(description string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	return p.fill("description", newProjectContent, description)
}

// SelectTemplate picks the board template whose label is exactly name.
func (p *NewProject) SelectTemplate(name string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	return p.selectExact("template", newProjectTemplate.toggle, newProjectTemplate.options, name)
}

// SelectCardPreview picks the card preview whose label is exactly name.
func (p *NewProject) SelectCardPreview(name string) error {
	if err := p.requireReady(); err != nil {
		return err
	}
	return p.selectExact("card preview", newProjectCardPreview.toggle, newProjectCardPreview.options, name)
}

// SelectedTemplate reads the label the template dropdown shows.
func (p *NewProject) SelectedTemplate() (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	return p.text("selected template", newProjectTemplate.selected)
}

// SelectedCardPreview reads the label the card preview dropdown shows.
func (p *NewProject) SelectedCardPreview() (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	return p.text("selected card preview", newProjectCardPreview.selected)
}

// TemplateOptions lists the template dropdown's labels.
func (p *NewProject) TemplateOptions() ([]string, error) {
	return p.options("template", newProjectTemplate.options)
}

// CardPreviewOptions lists the card preview dropdown's labels.
func (p *NewProject) CardPreviewOptions() ([]string, error) {
	return p.options("card preview", newProjectCardPreview.options)
}

func (p *NewProject) options(what string, loc Locator) ([]string, error) {
	if err := p.requireReady(); err != nil {
		return nil, err
	}
	texts, err := p.site.driver.Texts(loc)
	if err != nil {
		return nil, elementErr(p.name, "list "+what+" options", loc, err)
	}
	return texts, nil
}

// ApplyBoldToSelection selects the whole description and presses the bold
// toolbar button.
func (p *NewProject) ApplyBoldToSelection() error {
	if err := p.requireReady(); err != nil {
		return err
	}
	if err := p.site.driver.SelectText(newProjectContent); err != nil {
		return elementErr(p.name, "select description", newProjectContent, err)
	}
	return p.click("bold", newProjectBold)
}

// CurrentDescriptionContent reads the description editor's value.
func (p *NewProject) CurrentDescriptionContent() (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	v, err := p.site.driver.InputValue(newProjectContent)
	if err != nil {
		return "", elementErr(p.name, "read description", newProjectContent, err)
	}
	return v, nil
}

// ProjectCount reads the counter on the projects tab.
func (p *NewProject) ProjectCount() (int, error) {
	if err := p.requireReady(); err != nil {
		return 0, err
	}
	return p.counter("project count", projectsCounter)
}

// ValidationMessage returns the server's error banner, or "" when none is
// shown.
func (p *NewProject) ValidationMessage() (string, error) {
	if err := p.requireReady(); err != nil {
		return "", err
	}
	ok, err := p.present(newProjectError)
	if err != nil || !ok {
		return "", err
	}
	return p.text("validation message", newProjectError)
}

// CreateResult tags a CreateOutcome.
type CreateResult int

const (
	ProjectCreated CreateResult = iota + 1
	ProjectRejected
)

func (r CreateResult) String() string {
	switch r {
	case ProjectCreated:
		return "created"
	case ProjectRejected:
		return "rejected"
	default:
		return fmt.Sprintf("CreateResult(%d)", int(r))
	}
}

// CreateOutcome is what submitting the form led to. A rejection is an
// expected outcome, not an error.
type CreateOutcome struct {
	Result CreateResult
	list   *ProjectList
	form   *NewProject
}

// Created returns the project list the browser landed on after success.
func (o CreateOutcome) Created() (*ProjectList, bool) {
	return o.list, o.Result == ProjectCreated
}

// Rejected returns the form when the project was not created.
func (o CreateOutcome) Rejected() (*NewProject, bool) {
	return o.form, o.Result == ProjectRejected
}

// Create submits the form. Calling it twice may create two projects.
func (p *NewProject) Create() (CreateOutcome, error) {
	if err := p.requireReady(); err != nil {
		return CreateOutcome{}, err
	}
	if err := p.click("create project", newProjectSubmit); err != nil {
		return CreateOutcome{}, err
	}

	list := newProjectList(p.site, p.owner)
	hit := p.probe(
		list.ready,
		func() (bool, error) { return p.present(newProjectError) },
	)
	if hit == 0 {
		if owner := urlutil.FirstSegment(p.site.driver.CurrentURL()); owner != "" {
			list.owner = owner
		}
		if err := list.enter(); err != nil {
			return CreateOutcome{}, err
		}
		p.site.log.Info("project_created", "owner", list.owner)
		return CreateOutcome{Result: ProjectCreated, list: list}, nil
	}

	form := newNewProject(p.site, p.owner)
	if err := form.enter(); err != nil {
		return CreateOutcome{}, err
	}
	p.site.log.Info("project_rejected", "owner", p.owner)
	return CreateOutcome{Result: ProjectRejected, form: form}, nil
}
