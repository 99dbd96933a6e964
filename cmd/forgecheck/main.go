// Command forgecheck runs the forge smoke checks (sign in, create a project,
// create and delete a repository) and exits non-zero when one fails.
package main

import "os"

func main() {
	os.Exit(Execute())
}
