/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "dialpilot/cmd"

func main() {
	cmd.Execute()
}
