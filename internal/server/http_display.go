package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	fmt.Fprintln(s.out, "Available endpoints:")
	fmt.Fprintln(s.out, "  GET  /health            - Health check")
	fmt.Fprintln(s.out, "  GET  /stats             - Server statistics")
	fmt.Fprintln(s.out, "  POST /runs              - Start a pipeline run (requires API key)")
	fmt.Fprintln(s.out, "  GET  /runs/{id}         - Run progress (requires API key)")
	fmt.Fprintln(s.out, "  GET  /runs/{id}/result  - Final run state (requires API key)")
	fmt.Fprintln(s.out, "  POST /score             - Score extracted candidates (requires API key)")
	fmt.Fprintln(s.out, "  POST /shortlist         - Rank scored candidates (requires API key)")

	if n := s.keyCount(); n > 0 {
		fmt.Fprintf(s.out, "API authentication: ENABLED (%d keys configured)\n", n)
	} else {
		fmt.Fprintln(s.out, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(s.out, "WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.out, "Request size limit: DISABLED")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(s.out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		fmt.Fprintln(s.out, "Rate limiting: DISABLED")
	}

	if s.deps.Model == nil {
		fmt.Fprintln(s.out, "Model: NOT CONFIGURED (pattern extraction, default cultural fit)")
	}
}
