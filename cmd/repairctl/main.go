package main

import "github.com/repairdesk/repair-service/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
