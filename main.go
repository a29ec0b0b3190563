/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/aulnovauk/sales-management-process-old-sub001/cmd"

func main() {
	cmd.Execute()
}
