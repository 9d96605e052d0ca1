// Command hybridsearch indexes team documents and answers hybrid keyword and
// semantic queries over them.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/hybridsearch/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
