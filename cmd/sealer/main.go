package main

import (
	"log"
	"os"

	"github.com/dmitrijs2005/sehatbot/internal/sealer"
)

func main() {
	if err := sealer.Run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
