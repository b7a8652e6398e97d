// Command healthcheck probes the API health endpoint and exits nonzero on
// failure. Used as the container HEALTHCHECK for scratch images that ship
// no shell or curl.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	if !probe(healthURL(os.Getenv("AIDE_LISTEN_ADDR"))) {
		os.Exit(1)
	}
}

func probe(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// healthURL maps the configured listen address onto a loopback probe URL.
// The server may bind 0.0.0.0 inside a container, but the probe runs in the
// same container and must dial loopback.
func healthURL(listenAddr string) string {
	host, port := "127.0.0.1", "8080"
	if h, p, err := net.SplitHostPort(listenAddr); err == nil {
		if h != "" && h != "0.0.0.0" {
			host = h
		}
		port = p
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/v1/health"
}
