package forgetest

import "pgregory.net/rapid"

// UsernameGenerator draws the seeded user name, an empty string or an
// arbitrary short name.
func UsernameGenerator() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(DefaultUser.Name),
		rapid.Just(""),
		rapid.StringMatching(`[a-z]{1,8}`),
	)
}

// PasswordGenerator draws the seeded password, an empty string or an
// arbitrary short password.
func PasswordGenerator() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(DefaultUser.Password),
		rapid.Just(""),
		rapid.StringMatching(`[a-z0-9]{1,10}`),
	)
}

// ProjectTitleGenerator generates valid project titles. They carry no
// surrounding whitespace, which the forge trims.
func ProjectTitleGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{3,48}[A-Za-z0-9]`)
}

// ProjectDescriptionGenerator generates descriptions (can be empty).
func ProjectDescriptionGenerator() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(""),
		rapid.StringMatching(`[A-Za-z0-9 .,!?]{1,200}`),
	)
}

// RepoNameGenerator generates names the API accepts.
func RepoNameGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9_.-]{0,39}`)
}
