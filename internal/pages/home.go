package pages

import (
	"fmt"
	"time"

	"github.com/kuitang/forge-e2e/internal/errs"
	"github.com/kuitang/forge-e2e/internal/urlutil"
)

var (
	homeUserMenu     = CSS("#navbar .ui.dropdown.jump.item:has(.user-menu)")
	homeProfileItem  = CSS("#navbar .user-menu > a.item")
	homeSignedInUser = CSS("#navbar .user-menu .header strong")
)

// Home is the signed-in dashboard at /.
type Home struct {
	page
}

func newHome(s *Site) *Home {
	h := &Home{page: page{
		site:         s,
		name:         "home",
		path:         "/",
		implicitWait: 2 * time.Second,
	}}
	h.ready = h.titleContains(s.markers.HomeTitle)
	return h
}

// IsSignedIn reports whether the dashboard shows a user menu.
func (h *Home) IsSignedIn() (bool, error) {
	return h.present(homeUserMenu)
}

// SignedInUser reads the name shown in the user menu header.
func (h *Home) SignedInUser() (string, error) {
	if err := h.requireReady(); err != nil {
		return "", err
	}
	return h.text("signed-in user", homeSignedInUser)
}

// OpenProfile opens the user menu and follows its profile link.
func (h *Home) OpenProfile() (*Profile, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	if err := h.click("user menu", homeUserMenu); err != nil {
		return nil, err
	}
	href, err := h.site.driver.Attribute(homeProfileItem, "href")
	if err != nil {
		return nil, elementErr(h.name, "read profile link", homeProfileItem, err)
	}
	owner := urlutil.FirstSegment(href)
	if owner == "" {
		return nil, errs.New(errs.ElementNotFound, fmt.Sprintf("home page: profile link %q names no user", href))
	}
	if err := h.click("profile", homeProfileItem); err != nil {
		return nil, err
	}
	p := newProfile(h.site, owner)
	if err := p.enter(); err != nil {
		return nil, err
	}
	return p, nil
}
