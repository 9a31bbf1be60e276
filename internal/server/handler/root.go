package handler

import "net/http"

// Version is reported by the root banner.
var Version = "1.0.0"

type bannerEndpoints struct {
	Markets   string `json:"markets"`
	Bets      string `json:"bets"`
	Protocols string `json:"protocols"`
	Oracle    string `json:"oracle"`
	Users     string `json:"users"`
	Charts    string `json:"charts"`
}

type banner struct {
	Message   string          `json:"message"`
	Version   string          `json:"version"`
	Endpoints bannerEndpoints `json:"endpoints"`
}

// Root returns the service banner with its endpoint directory.
// GET /
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, banner{
		Message: "🚀 Prophyt API is functional 🚀",
		Version: Version,
		Endpoints: bannerEndpoints{
			Markets:   "/api/markets",
			Bets:      "/api/bets",
			Protocols: "/api/protocols",
			Oracle:    "/api/oracle/price/latest",
			Users:     "/api/users/:address/bets",
			Charts:    "/api/charts/market/:id",
		},
	})
}

// NotFound answers every unmatched route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Endpoint not found")
}
