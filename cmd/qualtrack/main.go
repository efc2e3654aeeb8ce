package main

import (
	"github.com/qualtrack/qualtrack/internal/cli"
)

func main() {
	cli.Execute()
}
