package httphost

import (
	"encoding/json"
	"net/http"

	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
)

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before a
// JSON-RPC exchange is possible. Shape: {"error":"<reason>"}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeRPCError emits a JSON-RPC error response without an id.
func writeRPCError(w http.ResponseWriter, status int, code jsonrpc.ErrorCode, msg string) {
	b, err := jsonrpc.Encode(jsonrpc.NewError(nil, code, msg, nil))
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))
}
