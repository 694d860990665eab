// The main package for the firmscout executable.
package main

import "firmscout/cmd"

func main() {
	cmd.Execute()
}
