package main

import (
	"os"

	"github.com/assessli/companion/companionservice"
)

func main() {
	if err := companionservice.Run(); err != nil {
		os.Exit(1)
	}
}
