// The main package for the showcase-crawler executable.
package main

import (
	"github.com/pzntech/showcase-crawler/cmd"
)

func main() {
	cmd.Execute()
}
