package main

import (
	"github.com/RobinHuo/zrc-benchmarks/internal/cli"

	// benchmarks register themselves on import
	_ "github.com/RobinHuo/zrc-benchmarks/internal/slm21"
)

func main() {
	cli.Execute()
}
