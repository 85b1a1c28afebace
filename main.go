package main

import "github.com/bandwidth-hero/bandwidth-hero-proxy/cmd"

func main() {
	cmd.Execute()
}
