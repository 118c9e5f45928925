package main

import (
	"github.com/nodeledger/rewards-tracker/cmd"
)

func main() {
	cmd.Execute()
}
