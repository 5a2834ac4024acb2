package main

import "github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/cmd"

func main() {
	cmd.Execute()
}
