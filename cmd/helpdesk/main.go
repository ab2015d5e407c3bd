package main

import "github.com/spec-kit/helpdesk-sla/internal/cli"

func main() {
	cli.Execute()
}
