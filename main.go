// The main package for the wormy executable.
package main

import (
	"github.com/scrapeworks/wormy/cmd"
)

func main() {
	cmd.Execute()
}
