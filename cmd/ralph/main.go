package main

// version is stamped at release time via -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	Execute()
}
