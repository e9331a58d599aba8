package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/tillberg/autorestart"

	"github.com/volumeee/zenclaw-sub000/internal/cli"
)

func main() {
	if os.Getenv("ZENCLAW_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
