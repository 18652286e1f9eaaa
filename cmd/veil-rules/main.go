package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lovenda/veil/pkg/authz"
)

// veil-rules compiles the canonical permission table into a Firestore
// security rules document. Deploying the output keeps the declarative rules
// in lockstep with the in-process engine.
func main() {
	output := flag.String("o", "", "Write rules to this file instead of stdout")
	flag.Parse()

	rules := authz.GenerateFirestoreRules()

	if *output == "" {
		fmt.Print(rules)
		return
	}

	if err := os.WriteFile(*output, []byte(rules), 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
	log.Printf("Wrote %d bytes to %s", len(rules), *output)
}
