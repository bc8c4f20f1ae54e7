package main

import (
	"go.uber.org/fx"

	"github.com/bakehouse-app/bakehouse/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
