package main

import "github.com/vietddude/ledgersync/internal/cli"

func main() {
	cli.Execute()
}
