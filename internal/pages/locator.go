// Package pages models the forge's screens as page components.
//
// A component is only handed to callers after its ready predicate held, and
// every transition edge returns the next component already ready. Locators
// are descriptors resolved by the Driver on each use; resolved element
// handles are never kept across waits.
package pages

import (
	"fmt"
	"time"
)

// Strategy selects how a Driver resolves a locator.
type Strategy string

const (
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
	ByText  Strategy = "text"
	ByID    Strategy = "id"
)

// Locator is an opaque element reference: a strategy, a selector, and the
// index of the match single-element actions apply to.
type Locator struct {
	Strategy Strategy
	Selector string
	Index    int
}

func CSS(selector string) Locator   { return Locator{Strategy: ByCSS, Selector: selector} }
func XPath(selector string) Locator { return Locator{Strategy: ByXPath, Selector: selector} }
func Text(text string) Locator      { return Locator{Strategy: ByText, Selector: text} }
func ID(id string) Locator          { return Locator{Strategy: ByID, Selector: id} }

// Nth returns the same locator pointing at the i-th match.
func (l Locator) Nth(i int) Locator {
	l.Index = i
	return l
}

func (l Locator) String() string {
	if l.Index > 0 {
		return fmt.Sprintf("%s=%s[%d]", l.Strategy, l.Selector, l.Index)
	}
	return fmt.Sprintf("%s=%s", l.Strategy, l.Selector)
}

// Driver is the browser-automation protocol page components run on.
//
// Count and Texts consider every match of a locator. The remaining
// element operations act on the match at Locator.Index.
type Driver interface {
	Navigate(url string) error
	Title() (string, error)
	CurrentURL() string
	// SetImplicitWait sets how long element actions wait for their target.
	SetImplicitWait(d time.Duration)

	Count(loc Locator) (int, error)
	Texts(loc Locator) ([]string, error)
	Text(loc Locator) (string, error)
	InputValue(loc Locator) (string, error)
	Attribute(loc Locator, name string) (string, error)

	Fill(loc Locator, value string) error
	Click(loc Locator) error
	// SelectText selects the full text content of an input or textarea.
	SelectText(loc Locator) error
}
