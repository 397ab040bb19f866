package main

import "auction-backend/internal/app"

func main() {
	app.Run()
}
