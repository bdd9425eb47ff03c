// The main package for the noticecrawler executable.
package main

import (
	"github.com/contractwatch/noticecrawler/cmd"
)

func main() {
	cmd.Execute()
}
