package main

import (
	"github.com/ColonelBlimp/fpvdetect/cmd"
	"github.com/ColonelBlimp/fpvdetect/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
