package main

import (
	"os"

	"horse.fit/feedcore/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
