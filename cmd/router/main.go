package main

import (
	"os"

	"github.com/solswap/router/internal/app"
)

func main() {
	os.Exit(app.NewRunner().Run(os.Args[1:]))
}
