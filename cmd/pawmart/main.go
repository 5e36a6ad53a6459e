package main

import (
	"context"
	"os"

	"github.com/fjod/pawmart/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
