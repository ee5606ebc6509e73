package main

import (
	"github.com/mnemora/mnemora/internal/mnemoctl/cmd"
)

func main() {
	cmd.Execute()
}
