/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package main

import "github.com/universal-claude-router/ucr/cmd"

func main() {
	cmd.Execute()
}
