package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reigncloud/reigncloud/internal/domain"
	apperrors "github.com/reigncloud/reigncloud/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCreateMessage(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	app := &mockAppService{
		createMessageFn: func(_ context.Context, s, r uuid.UUID, content string) (*domain.Message, error) {
			return &domain.Message{ID: uuid.New(), SenderID: s, RecipientID: r, Content: content, CreatedAt: created, UpdatedAt: created}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := do(srv, http.MethodPost, "/api/messages", accessToken(t, sender),
		`{"recipient_id":"`+recipient.String()+`","content":"hello"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sender, resp.SenderID, "sender comes from the token, not the body")
	assert.Equal(t, recipient, resp.RecipientID)
	assert.Equal(t, "hello", resp.Content)
	assert.True(t, created.Equal(resp.CreatedAt))
}

func TestHandleCreateMessage_Errors(t *testing.T) {
	sender := uuid.New()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"bad recipient id", `{"recipient_id":"nope","content":"x"}`, nil, http.StatusBadRequest},
		{"empty content", `{"recipient_id":"` + uuid.NewString() + `","content":"  "}`, domain.ErrEmptyContent, http.StatusBadRequest},
		{"unknown recipient", `{"recipient_id":"` + uuid.NewString() + `","content":"x"}`, domain.ErrRecipientNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &mockAppService{
				createMessageFn: func(context.Context, uuid.UUID, uuid.UUID, string) (*domain.Message, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(t, app)

			rec := do(srv, http.MethodPost, "/api/messages", accessToken(t, sender), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleListMessages(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	app := &mockAppService{
		listConversationFn: func(_ context.Context, userID, otherID uuid.UUID) ([]domain.Message, error) {
			assert.Equal(t, me, userID)
			assert.Equal(t, other, otherID)
			return []domain.Message{
				{ID: uuid.New(), SenderID: me, RecipientID: other, Content: "first"},
				{ID: uuid.New(), SenderID: other, RecipientID: me, Content: "second"},
			}, nil
		},
	}
	srv := newTestServer(t, app)

	rec := do(srv, http.MethodGet, "/api/messages?with="+other.String(), accessToken(t, me), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "first", resp[0].Content)
	assert.Equal(t, "second", resp[1].Content)
}

func TestHandleListMessages_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := do(srv, http.MethodGet, "/api/messages?with="+uuid.NewString(), accessToken(t, uuid.New()), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleListMessages_MissingWith(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := do(srv, http.MethodGet, "/api/messages", accessToken(t, uuid.New()), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateMessage(t *testing.T) {
	owner := uuid.New()
	messageID := uuid.New()
	app := &mockAppService{
		updateMessageFn: func(_ context.Context, id, sender uuid.UUID, content string) (*domain.Message, error) {
			if id != messageID || sender != owner {
				return nil, domain.ErrMessageNotFound
			}
			return &domain.Message{ID: id, SenderID: sender, Content: content}, nil
		},
	}
	srv := newTestServer(t, app)
	path := "/api/messages/" + messageID.String()

	rec := do(srv, http.MethodPut, path, accessToken(t, owner), `{"content":"edited"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"content":"edited"`)

	rec = do(srv, http.MethodPut, path, accessToken(t, uuid.New()), `{"content":"hijack"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "message not found or you are not the sender", resp.Error)

	rec = do(srv, http.MethodPut, "/api/messages/not-a-uuid", accessToken(t, owner), `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeleteMessage(t *testing.T) {
	owner := uuid.New()
	messageID := uuid.New()
	deleted := false
	app := &mockAppService{
		deleteMessageFn: func(_ context.Context, id, sender uuid.UUID) error {
			if deleted || id != messageID || sender != owner {
				return domain.ErrMessageNotFound
			}
			deleted = true
			return nil
		},
	}
	srv := newTestServer(t, app)
	path := "/api/messages/" + messageID.String()

	rec := do(srv, http.MethodDelete, path, accessToken(t, uuid.New()), "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "non-owner")

	rec = do(srv, http.MethodDelete, path, accessToken(t, owner), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(srv, http.MethodDelete, path, accessToken(t, owner), "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "already deleted")
}

func TestHandleMessage_InternalErrorHidesCause(t *testing.T) {
	app := &mockAppService{
		deleteMessageFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return assert.AnError
		},
	}
	srv := newTestServer(t, app)

	rec := do(srv, http.MethodDelete, "/api/messages/"+uuid.NewString(), accessToken(t, uuid.New()), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
