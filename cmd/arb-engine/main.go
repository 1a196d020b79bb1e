package main

import (
	"github.com/arbscope/cross-chain-arb-engine/internal/cli"
)

func main() {
	cli.Execute()
}
