// Command msmctl is a thin operator companion for the SecretManagerConfig
// CRD: it never talks to GCP/AWS/Azure directly, it only reads and
// annotates the custom resource the same way a human with kubectl would.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
