package main

import "github.com/mvp-joe/pydefs/internal/cli"

func main() {
	cli.Execute()
}
