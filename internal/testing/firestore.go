// Package testing provides shared test infrastructure.
package testing

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
)

const clearDataTimeout = 10 * time.Second

// FirestoreEmulator wraps a client connected to a running Firestore emulator.
type FirestoreEmulator struct {
	Host      string
	ProjectID string
	Client    *firestore.Client
}

// SetupFirestoreEmulator connects to the emulator named by
// FIRESTORE_EMULATOR_HOST and skips the test when none is configured. Each
// call uses a unique project ID so tests stay isolated.
func SetupFirestoreEmulator(t *testing.T) (*FirestoreEmulator, context.Context) {
	t.Helper()

	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set; skipping emulator-backed test")
	}

	ctx := context.Background()
	emulator := &FirestoreEmulator{
		Host:      host,
		ProjectID: uniqueProjectID(),
	}

	client, err := firestore.NewClient(ctx, emulator.ProjectID)
	if err != nil {
		t.Fatalf("Failed to create Firestore client: %v", err)
	}
	emulator.Client = client

	t.Cleanup(func() {
		if err := emulator.ClearData(ctx); err != nil {
			t.Logf("Warning: failed to clear emulator data: %v", err)
		}
		_ = client.Close()
	})

	return emulator, ctx
}

// ClearData wipes the emulator project so the next test starts empty.
func (e *FirestoreEmulator) ClearData(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, clearDataTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/emulator/v1/projects/%s/databases/(default)/documents", e.Host, e.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build clear request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to clear emulator data: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emulator clear returned status %d", resp.StatusCode)
	}
	return nil
}

func uniqueProjectID() string {
	return fmt.Sprintf("test-%d-%d", time.Now().Unix(), rand.Intn(10000))
}
