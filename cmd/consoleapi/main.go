package main

import (
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/cmd/consoleapi/cmd"
)

func main() {
	cmd.Execute()
}
