// Hermes is a URL sanitization service. It strips tracking parameters
// from links using the ClearURLs rule catalogue, expands allowlisted
// shortener links, and optionally escalates unknown parameters to an
// inference fallback.
//
// Usage:
//
//	# Start the API server with default configuration
//	hermes run
//
//	# Start with a configuration file
//	hermes run --config /etc/hermes/hermes.yaml
//
//	# Clean a single link from the command line
//	hermes clean "https://example.com/p?id=1&utm_source=mail"
//
//	# Validate a rule document before deploying it
//	hermes rules validate --source /etc/hermes/rules.json
//
//	# Show version information
//	hermes version
package main

func main() {
	Execute()
}
