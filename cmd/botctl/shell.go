package main

import (
	"context"

	"github.com/lokoweb3/skillbot/internal/shell"
)

func runShell(a *app) error {
	return shell.New(a.router).Run(context.Background())
}
