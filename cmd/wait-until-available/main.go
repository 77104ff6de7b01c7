package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Usage example on the command line:
// > PORT=8080 go run main.go -timeout=2m
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	timeoutPtr := flag.Duration("timeout", 0, "give up after this long; 0 waits forever")
	flag.Parse()

	url := fmt.Sprintf("http://localhost:%s/contacts", port)
	client := &http.Client{Timeout: 5 * time.Second}
	start := time.Now()
	for {
		res, err := client.Get(url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				fmt.Println(res.Status)
				break
			}
			fmt.Println(res.Status)
		} else {
			fmt.Println(err)
		}
		waited := time.Since(start).Round(time.Second)
		if *timeoutPtr > 0 && waited >= *timeoutPtr {
			fmt.Printf("Service not available after %s", waited)
			fmt.Println()
			os.Exit(1)
		}
		fmt.Printf("Waiting %s", waited)
		fmt.Println()
		time.Sleep(5 * time.Second)
	}
}
