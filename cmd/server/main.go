package main

import "pingme/internal/app"

func main() {
	app.Run()
}
