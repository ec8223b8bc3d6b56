package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chatopsmvp/chatops-be/pkg/chatclient"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "relay base URL")
	readTimeout := flag.Duration("read-timeout", 30*time.Second, "max wait between stream chunks")
	flag.Parse()

	client := chatclient.New(chatclient.Config{
		BaseURL:     *baseURL,
		ReadTimeout: *readTimeout,
		OnFragment: func(fragment string) {
			fmt.Print(fragment)
		},
	}, chatclient.NewStore())

	fmt.Printf("Connected to %s. Type a message, or /quit to exit.\n", *baseURL)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		if err := client.Submit(context.Background(), line); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
	}
}
