package main

import (
	"log"
	"os"
	"path/filepath"
)

// Port configuration based on environment
var (
	HTTP_PORT  int
	HTTPS_PORT int
	SSH_PORT   int
	DNS_PORT   int
)

// debugMode turns on verbose request/attempt logging
var debugMode = os.Getenv("DEBUG") == "true"

func init() {
	// Check for high-port development mode
	if os.Getenv("HIGH_PORT_MODE") == "true" {
		log.Println("Running in HIGH_PORT_MODE - using non-privileged ports")
		HTTP_PORT = 8080  // Instead of 80
		HTTPS_PORT = 8443 // Instead of 443
		SSH_PORT = 2222   // Instead of 22
		DNS_PORT = 8053   // Instead of 53
	} else {
		// Production mode - standard ports
		HTTP_PORT = 80
		HTTPS_PORT = 443
		SSH_PORT = 22
		DNS_PORT = 53
	}

	log.Printf("Port configuration: HTTP=%d, HTTPS=%d, SSH=%d, DNS=%d",
		HTTP_PORT, HTTPS_PORT, SSH_PORT, DNS_PORT)
}

// modelsConfigPath returns where to look for models.yaml
func modelsConfigPath() string {
	if path := os.Getenv("MODELS_CONFIG"); path != "" {
		return path
	}
	return "models.yaml"
}

// findSSLCertificates looks for SSL certificates in common locations
func findSSLCertificates() (certPath, keyPath string, found bool) {
	// First, check working directory
	if fileExists("cert.pem") && fileExists("key.pem") {
		return "cert.pem", "key.pem", true
	}

	// Check for Let's Encrypt certificates
	domain := os.Getenv("BASE_DOMAIN")
	if domain == "" {
		return "", "", false
	}

	letsEncryptPaths := []string{
		filepath.Join("/etc/letsencrypt/live", domain),
		filepath.Join("/etc/letsencrypt/live", "chat."+domain),
	}

	for _, basePath := range letsEncryptPaths {
		certFile := filepath.Join(basePath, "fullchain.pem")
		keyFile := filepath.Join(basePath, "privkey.pem")

		if fileExists(certFile) && fileExists(keyFile) {
			log.Printf("Found Let's Encrypt certificates at %s", basePath)
			return certFile, keyFile, true
		}
	}

	return "", "", false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
