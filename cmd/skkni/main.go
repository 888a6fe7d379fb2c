package main

import (
	"os"

	"github.com/datanaker/skkni-cache/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
