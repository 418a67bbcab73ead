package main

import (
	"log"

	"scheduler-webhook/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
