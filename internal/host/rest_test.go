package host

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grocery-field/card/internal/domain"
)

func TestRESTClientCallPostsService(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL+"/", "llat", "", srv.Client())
	require.NoError(t, err)

	err = client.Call(context.Background(), domain.Command{
		Name:    domain.CommandScanRemove,
		Payload: map[string]any{"barcode": "7310865004703", "source": domain.SourceMobile},
	})
	require.NoError(t, err)
	require.Equal(t, "/api/services/pyscript/grocery_scan_remove", gotPath)
	require.Equal(t, "Bearer llat", gotAuth)
	require.Equal(t, map[string]any{"barcode": "7310865004703", "source": "mobile"}, gotBody)
}

func TestRESTClientCallReportsRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "bad", "pyscript", srv.Client())
	require.NoError(t, err)

	err = client.Call(context.Background(), domain.Command{Name: domain.CommandManualRemove})
	require.ErrorIs(t, err, ErrHostUnavailable)

	err = client.Call(context.Background(), domain.Command{})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrHostUnavailable))
}

func TestRESTClientSnapshot(t *testing.T) {
	t.Parallel()

	states := map[string]string{
		SensorTotalItems:   `{"entity_id":"sensor.grocery_total_items","state":"1","attributes":{"items":[{"id":"x","name":"Smör","quantity":1,"location":"kyl"}]}}`,
		SensorExpiringSoon: `{"entity_id":"sensor.grocery_expiring_soon","state":"1"}`,
		SensorExpired:      `{"entity_id":"sensor.grocery_expired","state":"0"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/api/states/"):]
		body, ok := states[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "llat", "", srv.Client())
	require.NoError(t, err)

	snap, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	require.Equal(t, "Smör", snap.Items[0].Name)
	require.Equal(t, 1, snap.ExpiringSoon)
	require.Zero(t, snap.LowStock)
}

func TestInstrumentedRecordsOutcome(t *testing.T) {
	t.Parallel()

	rec := &Recorder{Err: errors.New("boom")}
	var events []string
	ch := Instrument(rec, func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	})

	err := ch.Call(context.Background(), domain.Command{Name: domain.CommandSetExpiry})
	require.EqualError(t, err, "boom")
	require.Equal(t, []string{"host.command.failed"}, events)
	require.Len(t, rec.Commands(), 1)
}
