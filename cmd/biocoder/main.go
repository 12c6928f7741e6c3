package main

import (
	"github.com/joho/godotenv"

	"github.com/ssargent/biocoder/cmd/biocoder/cmd"
	"github.com/ssargent/biocoder/pkg/di"
)

func main() {
	// a missing .env is not an error
	_ = godotenv.Load()

	container := di.NewContainer()
	cmd.SetContainer(container)

	cmd.Execute()
}
