// Command ragchat is the entry point for the console RAG chat assistant.
// It ingests local documents into a vector index and answers questions
// about them from the terminal, grounded in retrieved context.
package main

import (
	"fmt"
	"os"

	"github.com/olifarhaan/rag-console-chat/cmd/ragchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
