// Command saga-code is a developer CLI for OpenAI-compatible servers: model
// discovery, interactive chat, and layered prompt rendering.
package main

import (
	"log"

	"github.com/saga-labs/saga-code/pkg/cli"
)

// version is set at build time via -ldflags.
var version = "0.3.0"

func main() {
	log.SetFlags(0)
	cli.Execute(version)
}
