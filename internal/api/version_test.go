package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want BuildInfo
	}{
		{
			name: "stamped build",
			info: BuildInfo{Version: "1.2.0", GitCommit: "abc123", BuildDate: "2026-06-01T12:00:00Z"},
			want: BuildInfo{Version: "1.2.0", GitCommit: "abc123", BuildDate: "2026-06-01T12:00:00Z"},
		},
		{
			name: "unstamped build",
			want: BuildInfo{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
		},
		{
			name: "version only",
			info: BuildInfo{Version: "1.2.0"},
			want: BuildInfo{Version: "1.2.0", GitCommit: "unknown", BuildDate: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := VersionHandler(tt.info, time.Now().Add(-90*time.Second))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body versionResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.want.Version, body.Version)
			assert.Equal(t, tt.want.GitCommit, body.GitCommit)
			assert.Equal(t, tt.want.BuildDate, body.BuildDate)
			assert.Equal(t, runtime.Version(), body.GoVersion)
			assert.GreaterOrEqual(t, body.UptimeSeconds, int64(90))
		})
	}
}
