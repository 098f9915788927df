package main

import (
	"github.com/gpurelay/gpurelay/internal/cli"
	"github.com/gpurelay/gpurelay/internal/common/logging"
)

func init() {
	logging.InitLogger()
	logging.SetLevel("error")
}

func main() {
	cli.Execute()
}
