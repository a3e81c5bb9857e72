package main

import (
	"github.com/dyike/TradeDataGo/internal/cli"
)

func main() {
	cli.Run()
}
