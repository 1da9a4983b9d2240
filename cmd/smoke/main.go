package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	wait := flag.Duration("wait", 2*time.Second, "time to wait for the server to start")
	flag.Parse()

	time.Sleep(*wait)
	fmt.Println("Starting smoke test...")

	runID := time.Now().Unix()
	id := func(n int) string { return fmt.Sprintf("smoke-%d-%d", runID, n) }

	steps := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"health", http.MethodGet, "/health", nil},
		{"judge translation", http.MethodPost, "/similarity", map[string]string{
			"a": "Moore Machine", "b": "Macchina di Moore",
		}},
		{"dedupe batch", http.MethodPost, "/dedupe", map[string]interface{}{
			"items": []map[string]string{
				{"id": id(1), "name": "Moore Machine", "category": "automata"},
				{"id": id(2), "name": "Macchina di Moore", "category": "automata"},
				{"id": id(3), "name": "Mealy Machine", "category": "automata"},
			},
		}},
		{"component", http.MethodGet, "/components/" + id(1), nil},
		{"infer", http.MethodGet, "/infer?a=" + id(1) + "&b=" + id(3), nil},
		{"clusters", http.MethodGet, "/clusters", nil},
		{"stats", http.MethodGet, "/stats", nil},
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	for i, step := range steps {
		fmt.Printf("%d. %s...\n", i+1, step.name)
		if !sendRequest(client, step.method, *baseURL+step.path, step.body) {
			fmt.Printf("FAILED: %s\n", step.name)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", step.name)
	}
}

func sendRequest(client *http.Client, method, url string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return true
}
