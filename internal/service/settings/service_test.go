package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"chatrelay/internal/domain"
	chatModels "chatrelay/internal/domain/models/chat"
)

type fakeSettingsRepo struct {
	rows    map[string]*chatModels.Settings
	upserts int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{rows: make(map[string]*chatModels.Settings)}
}

func (r *fakeSettingsRepo) GetByUserID(ctx context.Context, userID string) (*chatModels.Settings, error) {
	settings, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	out := *settings
	return &out, nil
}

func (r *fakeSettingsRepo) Upsert(ctx context.Context, settings *chatModels.Settings) error {
	r.upserts++
	stored := *settings
	r.rows[settings.UserID] = &stored
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGet_CreatesDefaultsOnFirstRead(t *testing.T) {
	repo := newFakeSettingsRepo()
	service := NewService(repo, testLogger())

	settings, err := service.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if settings.Temperature != chatModels.DefaultTemperature {
		t.Errorf("temperature = %v, want %v", settings.Temperature, chatModels.DefaultTemperature)
	}
	if settings.MaxTokens != chatModels.DefaultMaxTokens {
		t.Errorf("max_tokens = %v, want %v", settings.MaxTokens, chatModels.DefaultMaxTokens)
	}
	if settings.Stream != chatModels.DefaultStream {
		t.Errorf("stream = %v, want %v", settings.Stream, chatModels.DefaultStream)
	}
	if repo.upserts != 1 {
		t.Errorf("first read should persist the row, got %d upserts", repo.upserts)
	}

	// Second read returns the stored row without another upsert.
	if _, err := service.Get(context.Background(), "user-1"); err != nil {
		t.Fatal(err)
	}
	if repo.upserts != 1 {
		t.Errorf("second read should not upsert, got %d upserts", repo.upserts)
	}
}

func TestUpdate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     UpdateRequest
		wantErr bool
	}{
		{"valid", UpdateRequest{Temperature: 1.0, MaxTokens: 100, Stream: true}, false},
		{"temperature zero", UpdateRequest{Temperature: 0, MaxTokens: 100}, false},
		{"temperature too high", UpdateRequest{Temperature: 2.5, MaxTokens: 100}, true},
		{"negative temperature", UpdateRequest{Temperature: -0.1, MaxTokens: 100}, true},
		{"zero max tokens", UpdateRequest{Temperature: 1.0, MaxTokens: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeSettingsRepo()
			service := NewService(repo, testLogger())

			settings, err := service.Update(context.Background(), "user-1", &tt.req)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if settings.Temperature != tt.req.Temperature || settings.MaxTokens != tt.req.MaxTokens || settings.Stream != tt.req.Stream {
				t.Errorf("stored settings = %+v, want request values", settings)
			}
		})
	}
}
