package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/services"
)

var (
	packerInstance *services.PackerFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandlePackDocuments", handlePackDocuments)
}

func main() {}

// handlePackDocuments is the HTTP handler for the packing service.
func handlePackDocuments(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		packerInstance, initErr = services.NewPacker(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Packer initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.PackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := packerInstance.Process(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in the Process method.
		if services.IsCallerError(err) {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "packId", res.PackID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
